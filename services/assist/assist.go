package assistsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/shulesoft/shule/core"
)

// Responder answers free-form helpdesk questions about the platform.
type Responder interface {
	Respond(ctx context.Context, question string) (string, error)
	// Notify forwards the question/answer pair to the workflow webhook.
	Notify(ctx context.Context, question, answer string) WebhookResult
}

type service struct {
	conf   *core.Config
	client *http.Client
	logger core.Logger
}

var _ Responder = (*service)(nil)

func NewService(conf *core.Config, logger core.Logger) Responder {
	return &service{
		conf:   conf,
		client: &http.Client{Timeout: conf.Assist.Timeout},
		logger: logger,
	}
}

// Respond tries the configured completion API first and falls back to the
// built-in keyword matcher when the API is unconfigured or unreachable, so
// the assistant always answers something.
func (svc *service) Respond(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	if svc.conf.Assist.APIKey != "" && svc.conf.Assist.APIURL != "" {
		answer, err := svc.complete(ctx, question)
		if err == nil {
			return answer, nil
		}
		svc.logger.Warn("assist API unavailable, falling back", err)
	}
	return keywordAnswer(question), nil
}

var ErrEmptyQuestion = errors.New("question is empty")

type (
	completionRequest struct {
		Model    string              `json:"model"`
		Messages []completionMessage `json:"messages"`
	}
	completionMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	completionResponse struct {
		Choices []struct {
			Message completionMessage `json:"message"`
		} `json:"choices"`
	}
)

const systemPrompt = "You are a helpful assistant for a school management platform. " +
	"Answer questions about courses, enrollments, departments, announcements and messaging, concisely."

func (svc *service) complete(ctx context.Context, question string) (string, error) {
	payload, err := json.Marshal(completionRequest{
		Model: svc.conf.Assist.Model,
		Messages: []completionMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: question},
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "encoding completion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.conf.Assist.APIURL, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "building completion request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+svc.conf.Assist.APIKey)

	res, err := svc.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "calling completion API")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= http.StatusBadRequest {
		return "", errors.Errorf("completion API status %d", res.StatusCode)
	}

	var body completionResponse
	if err = json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", errors.Wrap(err, "decoding completion response")
	}
	if len(body.Choices) == 0 || strings.TrimSpace(body.Choices[0].Message.Content) == "" {
		return "", errors.New("completion API returned no content")
	}
	return body.Choices[0].Message.Content, nil
}

// keyword fallback

var cannedAnswers = []struct {
	keywords []string
	answer   string
}{
	{
		keywords: []string{"password", "reset", "forgot"},
		answer:   "You can reset your password from the sign-in page: follow the \"Forgot password?\" link and check your email for the reset instructions.",
	},
	{
		keywords: []string{"enroll", "enrolment", "enrollment", "register", "course"},
		answer:   "Students can view and enroll in courses from the Courses page. Approvals, where required, are handled by the finance office.",
	},
	{
		keywords: []string{"message", "chat", "contact"},
		answer:   "Use the Messages page to reach professors, students and staff. Unread conversations appear on top of your contact list.",
	},
	{
		keywords: []string{"account", "approve", "approval", "pending"},
		answer:   "New accounts may need administrator approval before they become active. An email goes out as soon as yours is reviewed.",
	},
	{
		keywords: []string{"department"},
		answer:   "Departments are managed by administrators and department heads. Check the Departments page for staff and course listings.",
	},
}

func keywordAnswer(question string) string {
	q := strings.ToLower(question)
	for _, canned := range cannedAnswers {
		for _, kw := range canned.keywords {
			if strings.Contains(q, kw) {
				return canned.answer
			}
		}
	}
	return "I'm not sure about that one. Try rephrasing your question, or reach out to an administrator through Messages."
}

// webhook

type WebhookResult struct {
	Response string `json:"response"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// Notify posts the question/answer pair to the configured webhook. A missing
// webhook URL is not an error; delivery failures are reported in the result.
func (svc *service) Notify(ctx context.Context, question, answer string) WebhookResult {
	if svc.conf.Assist.WebhookURL == "" {
		return WebhookResult{Success: true}
	}

	payload, err := json.Marshal(map[string]string{"question": question, "answer": answer})
	if err != nil {
		return WebhookResult{Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.conf.Assist.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return WebhookResult{Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := svc.client.Do(req)
	if err != nil {
		return WebhookResult{Error: err.Error()}
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= http.StatusBadRequest {
		return WebhookResult{Error: fmt.Sprintf("webhook status %d", res.StatusCode)}
	}
	return WebhookResult{Response: "delivered", Success: true}
}
