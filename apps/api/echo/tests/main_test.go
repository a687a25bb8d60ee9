package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	. "github.com/shulesoft/shule/apps/api/echo"
	"github.com/shulesoft/shule/core"
	"github.com/shulesoft/shule/core/account"
	"github.com/shulesoft/shule/core/department"
	"github.com/shulesoft/shule/core/messaging"
	assistsvc "github.com/shulesoft/shule/services/assist"
	emailsvc "github.com/shulesoft/shule/services/email"
	inmemdb "github.com/shulesoft/shule/storage/database/inmem"
	testutil "github.com/shulesoft/shule/tests"
)

var (
	conf       *core.Config
	validate   *validator.Validate
	translator ut.Translator

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

func TestMain(m *testing.M) {
	conf = testutil.NewConfig()
	conf.Debug = false // render errors the way production does

	validate = validator.New()
	translator = newTranslator()
	core.InitValidators(validate, translator)
	account.RegisterValidators(validate, translator)

	os.Exit(m.Run())
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// testApp wires a Server on fresh in-memory repositories; each test gets its own.
type testApp struct {
	app         Server
	accountRepo account.Repository
	accountSvc  account.Service
}

func newApp() *testApp {
	db := inmemdb.NewDB()
	accountRepo := inmemdb.NewAccountRepository(db)
	accountSvc := account.NewServiceMock(conf, accountRepo, emailsvc.NewConsoleServiceMock(conf))
	logger := testutil.NewLogger()

	app := NewServer(
		&Options{
			DisableReqLogs: true,
			Conf:           conf,
			Logger:         logger,
			Validate:       validate,
			Translator:     translator,
			AccountSvc:     accountSvc,
			MessagingSvc:   messaging.NewService(inmemdb.NewMessageRepository(db), accountSvc, logger),
			DepartmentSvc:  department.NewService(inmemdb.NewDepartmentRepository(db)),
			AssistSvc:      assistsvc.NewService(conf, logger),
		},
	)
	return &testApp{app: app, accountRepo: accountRepo, accountSvc: accountSvc}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, prof account.Profile) string {
	t.Helper()
	idt := account.Identity{ID: prof.ID, Email: prof.Email}
	token, err := GenerateToken(conf, GetClaims(conf, idt, &prof))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
