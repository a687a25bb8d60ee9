package assistsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shulesoft/shule/core"
	testutil "github.com/shulesoft/shule/tests"
)

func newService(assist core.AssistConfig) *service {
	if assist.Timeout == 0 {
		assist.Timeout = 2 * time.Second
	}
	conf := &core.Config{Assist: assist}
	return &service{
		conf:   conf,
		client: &http.Client{Timeout: assist.Timeout},
		logger: testutil.NewLogger(),
	}
}

func TestRespond_emptyQuestion(t *testing.T) {
	svc := newService(core.AssistConfig{})

	for _, question := range []string{"", "   ", "\n\t"} {
		if _, err := svc.Respond(context.Background(), question); err != ErrEmptyQuestion {
			t.Errorf("Respond(%q) error = %v, want %v", question, err, ErrEmptyQuestion)
		}
	}
}

func TestRespond_keywordFallback(t *testing.T) {
	// no API configured: the keyword matcher answers
	svc := newService(core.AssistConfig{})

	tests := []struct {
		name     string
		question string
		contains string
	}{
		{name: "password", question: "How do I reset my password?", contains: "Forgot password?"},
		{name: "enrollment", question: "where do I ENROLL in a course", contains: "Courses page"},
		{name: "messaging", question: "can I chat with my professor?", contains: "Messages page"},
		{name: "approval", question: "my account is still pending", contains: "administrator approval"},
		{name: "department", question: "who runs the math department", contains: "Departments page"},
		{name: "unknown", question: "what's for lunch", contains: "not sure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer, err := svc.Respond(context.Background(), tt.question)
			if err != nil {
				t.Fatalf("Respond() failed: %v", err)
			}
			if !strings.Contains(answer, tt.contains) {
				t.Errorf("Respond() = %q, want it to contain %q", answer, tt.contains)
			}
		})
	}
}

func TestRespond_completionAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want Bearer test-key", got)
		}
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %q, want gpt-4o-mini", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		_ = json.NewEncoder(w).Encode(completionResponse{
			Choices: []struct {
				Message completionMessage `json:"message"`
			}{
				{Message: completionMessage{Role: "assistant", Content: "Here is how."}},
			},
		})
	}))
	defer srv.Close()

	svc := newService(core.AssistConfig{APIURL: srv.URL, APIKey: "test-key", Model: "gpt-4o-mini"})

	answer, err := svc.Respond(context.Background(), "how do I add a course?")
	if err != nil {
		t.Fatalf("Respond() failed: %v", err)
	}
	if answer != "Here is how." {
		t.Errorf("Respond() = %q, want the API answer", answer)
	}
}

func TestRespond_apiFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := newService(core.AssistConfig{APIURL: srv.URL, APIKey: "test-key"})

	answer, err := svc.Respond(context.Background(), "How do I reset my password?")
	if err != nil {
		t.Fatalf("Respond() failed: %v", err)
	}
	if !strings.Contains(answer, "Forgot password?") {
		t.Errorf("Respond() = %q, want the keyword fallback answer", answer)
	}
}

func TestNotify(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
	}))
	defer srv.Close()

	svc := newService(core.AssistConfig{WebhookURL: srv.URL})

	result := svc.Notify(context.Background(), "q?", "a.")
	if !result.Success {
		t.Fatalf("Notify() failed: %s", result.Error)
	}
	if received["question"] != "q?" || received["answer"] != "a." {
		t.Errorf("webhook received %+v, want the question/answer pair", received)
	}

	// no webhook configured: a silent success
	svc = newService(core.AssistConfig{})
	if result = svc.Notify(context.Background(), "q?", "a."); !result.Success {
		t.Error("Notify() without a webhook URL should succeed")
	}

	// delivery failures are reported, not raised
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()
	svc = newService(core.AssistConfig{WebhookURL: failing.URL})
	if result = svc.Notify(context.Background(), "q?", "a."); result.Success || result.Error == "" {
		t.Errorf("Notify() = %+v, want a reported failure", result)
	}
}
