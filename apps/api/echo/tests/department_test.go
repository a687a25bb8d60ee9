package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shulesoft/shule/core/account"
	"github.com/shulesoft/shule/core/department"
	testutil "github.com/shulesoft/shule/tests"
)

func Test_departmentApi(t *testing.T) {
	ta := newApp()

	student := testutil.CreateAccount(t, ta.accountRepo, "Hero Kasongo", "hero@test.cd", "", account.RoleStudent, account.SubRoleNone, account.StatusActive)
	finance := testutil.CreateAccount(t, ta.accountRepo, "Fin Tshala", "fin@test.cd", "", account.RoleAdmin, account.SubRoleFinanceAdmin, account.StatusActive)
	academic := testutil.CreateAccount(t, ta.accountRepo, "Aca Kanku", "aca@test.cd", "", account.RoleAdmin, account.SubRoleAcademicAdmin, account.StatusActive)
	super := testutil.CreateAccount(t, ta.accountRepo, "Sup Mbuyi", "sup@test.cd", "", account.RoleAdmin, account.SubRoleSuperAdmin, account.StatusActive)

	academicToken := getToken(t, academic)
	superToken := getToken(t, super)

	// a token whose profile no longer exists: the permission gate fails closed
	ghost := account.Profile{ID: "ghosted", Email: "ghost@test.cd", Role: account.RoleAdmin, SubRole: account.SubRoleSuperAdmin}
	ghostToken := getToken(t, ghost)

	t.Run("query permissions", func(t *testing.T) {
		tests := []httpTest{
			{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
			{name: "student", token: getToken(t, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
			{name: "finance admin", token: getToken(t, finance), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
			{name: "degraded session", token: ghostToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
			{name: "academic admin", token: academicToken, wantCode: http.StatusOK, wantData: marchallList(t)},
			{name: "super admin", token: superToken, wantCode: http.StatusOK, wantData: marchallList(t)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req, rec := newAuthRequest(http.MethodGet, "/v1/departments", tt.token)
				ta.app.ServeHTTP(rec, req)
				checkCodeAndData(t, tt, rec)
			})
		}
	})

	var created department.Department
	t.Run("create", func(t *testing.T) {
		body := marchallObj(t, department.NewDepartment{Name: "Mathematics"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/departments", academicToken, body)
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusCreated}, rec)

		if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
			t.Fatalf("unmarshalling department: %v", err)
		}
		if created.ID == "" || created.Name != "Mathematics" {
			t.Errorf("unexpected department: %+v", created)
		}
	})

	t.Run("create requires a name", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/departments", academicToken, []byte(`{}`))
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest}, rec)
	})

	t.Run("create permission denied", func(t *testing.T) {
		body := marchallObj(t, department.NewDepartment{Name: "Physics"})
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		req, rec := newAuthRequest(http.MethodPost, "/v1/departments", getToken(t, student), body)
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("query lists created departments", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusOK, wantData: marchallList(t, created)}
		req, rec := newAuthRequest(http.MethodGet, "/v1/departments", academicToken)
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("delete permission denied", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		req, rec := newAuthRequest(http.MethodDelete, "/v1/departments/"+created.ID, getToken(t, finance))
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("delete unknown", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}
		req, rec := newAuthRequest(http.MethodDelete, "/v1/departments/nope", superToken)
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/departments/"+created.ID, superToken)
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNoContent}, rec)

		req, rec = newAuthRequest(http.MethodGet, "/v1/departments", superToken)
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t)}, rec)
	})
}
