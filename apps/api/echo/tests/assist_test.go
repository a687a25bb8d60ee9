package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/shulesoft/shule/apps/api/echo"
	"github.com/shulesoft/shule/core/account"
	testutil "github.com/shulesoft/shule/tests"
)

func Test_assistApi_ask(t *testing.T) {
	ta := newApp()

	prof := testutil.CreateAccount(t, ta.accountRepo, "Jon Kabila", "jon@test.cd", "", account.RoleStudent, account.SubRoleNone, account.StatusActive)
	token := getToken(t, prof)

	t.Run("auth required", func(t *testing.T) {
		body := marchallObj(t, AssistRequest{Question: "hi"})
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		req, rec := newRequest(http.MethodPost, "/v1/assist", body)
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("question required", func(t *testing.T) {
		for _, body := range [][]byte{[]byte(`{}`), marchallObj(t, AssistRequest{Question: "   "})} {
			req, rec := newAuthRequest(http.MethodPost, "/v1/assist", token, body)
			ta.app.ServeHTTP(rec, req)
			checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest}, rec)
		}
	})

	t.Run("answers", func(t *testing.T) {
		body := marchallObj(t, AssistRequest{Question: "How do I reset my password?"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/assist", token, body)
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK}, rec)

		var res AssistResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if !strings.Contains(res.Answer, "Forgot password?") {
			t.Errorf("answer = %q, want password reset guidance", res.Answer)
		}
	})

	t.Run("notifies the workflow webhook", func(t *testing.T) {
		var delivered map[string]string
		hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := json.NewDecoder(r.Body).Decode(&delivered); err != nil {
				t.Errorf("decoding webhook payload: %v", err)
			}
		}))
		defer hook.Close()

		conf.Assist.WebhookURL = hook.URL
		defer func() { conf.Assist.WebhookURL = "" }()

		body := marchallObj(t, AssistRequest{Question: "How do I enroll in a course?"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/assist", token, body)
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK}, rec)

		if delivered["question"] != "How do I enroll in a course?" || delivered["answer"] == "" {
			t.Errorf("webhook payload = %+v, want the question/answer pair", delivered)
		}
	})
}
