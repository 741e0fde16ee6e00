package tests

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/eicr/apps/api/echo"
	"github.com/trezcool/eicr/core/user"
	"github.com/trezcool/eicr/tests"
)

func Test_userApi_login(t *testing.T) {
	e := setup(t)
	pwd := "Volt&Amp3re"
	usr := testutil.CreateUser(t, e.usrRepo, "Jane Sparks", "jsparks", "jane@test.com", pwd, []string{user.RoleInspector}, true)
	testutil.CreateUser(t, e.usrRepo, "Gone", "gone", "gone@test.com", pwd, nil, false)

	login := func(uname, pwd string) []byte {
		return marshalObj(t, LoginRequest{Username: uname, Password: pwd})
	}

	runHTTPTests(t, e, []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/users/login", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/users/login", body: login("nobody", pwd),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/users/login", body: login("jsparks", "nope"),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/users/login", body: login("gone", pwd),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	for _, uname := range []string{"jsparks", "JANE@test.com"} {
		t.Run("success with "+uname, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", login(uname, pwd))
			e.serve(req, rec)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp LoginResponse
			unmarshal(t, rec, &resp)
			claims := new(Claims)
			_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
				return []byte(e.conf.SecretKey), nil
			})
			require.NoError(t, err)
			assert.Equal(t, usr.ID, claims.Subject)
			assert.True(t, claims.IsInspector)
			assert.False(t, claims.IsAdmin)
		})
	}

	got, err := e.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.False(t, got.LastLogin.IsZero())
}

func Test_userApi_refreshToken(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "Jane Sparks", "jsparks", "jane@test.com", "", nil, true)
	gone := testutil.CreateUser(t, e.usrRepo, "Gone", "gone", "gone@test.com", "", nil, false)

	expired, err := GenerateToken(e.conf, GetUserClaims(e.conf, usr, time.Now().Add(-2*time.Hour).Unix()))
	require.NoError(t, err)

	runHTTPTests(t, e, []httpTest{
		{
			name: "auth required", method: http.MethodPost, path: "/v1/users/token-refresh",
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken),
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/users/token-refresh", token: getToken(t, e.conf, gone),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "refresh expired", method: http.MethodPost, path: "/v1/users/token-refresh", token: expired,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "refresh has expired"}),
		},
		{
			name: "refreshed", method: http.MethodPost, path: "/v1/users/token-refresh", token: getToken(t, e.conf, usr),
			wantCode: http.StatusOK,
		},
	})
}

func Test_userApi_register(t *testing.T) {
	e := setup(t)
	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@test.com", "", []string{user.RoleAdmin}, true)
	owner := testutil.CreateUser(t, e.usrRepo, "Owner", "owner", "owner@test.com", "", []string{user.RoleAdminOwner}, true)
	inspector := testutil.CreateUser(t, e.usrRepo, "Insp", "insp", "insp@test.com", "", []string{user.RoleInspector}, true)

	newUser := func(uname, email string, roles ...string) []byte {
		return marshalObj(t, user.NewUser{
			Name: "New One", Username: uname, Email: email,
			Password: "Volt&Amp3re", PasswordConfirm: "Volt&Amp3re", Roles: roles,
		})
	}

	runHTTPTests(t, e, []httpTest{
		{
			name: "auth required", method: http.MethodPost, path: "/v1/users/register", body: newUser("newone", "new@test.com"),
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken),
		},
		{
			name: "admin required", method: http.MethodPost, path: "/v1/users/register", token: getToken(t, e.conf, inspector),
			body: newUser("newone", "new@test.com"), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "username taken", method: http.MethodPost, path: "/v1/users/register", token: getToken(t, e.conf, admin),
			body: newUser("insp", "new@test.com"), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"username": user.ErrUsernameExists.Error()}),
		},
		{
			name: "role above own", method: http.MethodPost, path: "/v1/users/register", token: getToken(t, e.conf, admin),
			body: newUser("newone", "new@test.com", user.RoleAdminOwner), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"roles": "not enough rights to set these roles"}),
		},
		{
			name: "created", method: http.MethodPost, path: "/v1/users/register", token: getToken(t, e.conf, owner),
			body: newUser("newone", "new@test.com", user.RoleSupervisor), wantCode: http.StatusCreated,
		},
	})

	got, err := e.usrRepo.GetUser(context.Background(), user.GetFilter{Username: "newone"})
	require.NoError(t, err)
	assert.True(t, got.IsSupervisor())
	assert.NoError(t, got.CheckPassword("Volt&Amp3re"))
}

func Test_userApi_query(t *testing.T) {
	e := setup(t)
	now := time.Now()
	insp := testutil.CreateUser(t, e.usrRepo, "Insp One", "insp1", "insp1@test.com", "", []string{user.RoleInspector}, true, now.Add(-3*time.Hour))
	sup := testutil.CreateUser(t, e.usrRepo, "Supervisor", "sup", "sup@test.com", "", []string{user.RoleSupervisor}, true, now.Add(-2*time.Hour))
	gone := testutil.CreateUser(t, e.usrRepo, "Insp Two", "insp2", "insp2@test.com", "", []string{user.RoleInspector}, false, now.Add(-time.Hour))
	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@test.com", "", []string{user.RoleAdmin}, true, now)
	adminToken := getToken(t, e.conf, admin)

	path := func(params ...string) string {
		v := make(url.Values)
		for i := 0; i+1 < len(params); i += 2 {
			v.Add(params[i], params[i+1])
		}
		return "/v1/users?" + v.Encode()
	}

	tests := []struct {
		name    string
		path    string
		wantIDs []string
	}{
		{name: "all, newest first", path: "/v1/users", wantIDs: []string{admin.ID, gone.ID, sup.ID, insp.ID}},
		{name: "search", path: path("search", "INSP"), wantIDs: []string{gone.ID, insp.ID}},
		{name: "search (unknown)", path: path("search", "lol"), wantIDs: []string{}},
		{name: "role", path: path("role", user.RoleInspector), wantIDs: []string{gone.ID, insp.ID}},
		{name: "roles", path: path("role", user.RoleInspector, "role", user.RoleSupervisor), wantIDs: []string{gone.ID, sup.ID, insp.ID}},
		{name: "is_active", path: path("is_active", "false"), wantIDs: []string{gone.ID}},
		{name: "ordering", path: path("ordering", "created_at"), wantIDs: []string{insp.ID, sup.ID, gone.ID, admin.ID}},
		{name: "ordering by name", path: path("ordering", "-name"), wantIDs: []string{sup.ID, gone.ID, insp.ID, admin.ID}},
		{name: "unknown ordering is ignored", path: path("ordering", "password_hash"), wantIDs: []string{admin.ID, gone.ID, sup.ID, insp.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, adminToken)
			e.serve(req, rec)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var users []user.User
			unmarshal(t, rec, &users)
			ids := make([]string, 0, len(users))
			for _, usr := range users {
				ids = append(ids, usr.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	runHTTPTests(t, e, []httpTest{
		{name: "auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "admin required", path: "/v1/users", token: getToken(t, e.conf, sup),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "roles", path: "/v1/users/roles", token: adminToken, wantCode: http.StatusOK, wantData: marshalObj(t, user.Roles)},
	})
}

func Test_userApi_detail(t *testing.T) {
	e := setup(t)
	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@test.com", "", []string{user.RoleAdmin}, true)
	insp := testutil.CreateUser(t, e.usrRepo, "Insp", "insp", "insp@test.com", "", []string{user.RoleInspector}, true)
	other := testutil.CreateUser(t, e.usrRepo, "Other", "other", "other@test.com", "", []string{user.RoleInspector}, true)
	inspToken := getToken(t, e.conf, insp)
	adminToken := getToken(t, e.conf, admin)

	runHTTPTests(t, e, []httpTest{
		{name: "own profile", path: "/v1/users/" + insp.ID, token: inspToken, wantCode: http.StatusOK},
		{
			name: "someone else's profile", path: "/v1/users/" + other.ID, token: inspToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "not found"}),
		},
		{name: "admin sees all", path: "/v1/users/" + other.ID, token: adminToken, wantCode: http.StatusOK},
		{name: "me", path: "/v1/users/me", token: inspToken, wantCode: http.StatusOK},
		{name: "me: auth required", path: "/v1/users/me", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "inspectors cannot change roles", method: http.MethodPut, path: "/v1/users/" + insp.ID, token: inspToken,
			body: []byte(`{"roles": ["admin:"]}`), wantCode: http.StatusForbidden,
		},
		{
			name: "rename", method: http.MethodPut, path: "/v1/users/" + insp.ID, token: inspToken,
			body: []byte(`{"name": "Inspector Gadget"}`), wantCode: http.StatusOK,
		},
		{
			name: "cannot delete self", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: adminToken,
			wantCode: http.StatusForbidden,
		},
		{name: "delete", method: http.MethodDelete, path: "/v1/users/" + other.ID, token: adminToken, wantCode: http.StatusNoContent},
		{name: "deleted", path: "/v1/users/" + other.ID, token: adminToken, wantCode: http.StatusNotFound},
	})

	req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", inspToken)
	e.serve(req, rec)
	var me user.User
	unmarshal(t, rec, &me)
	assert.Equal(t, insp.ID, me.ID)
	assert.Equal(t, "Inspector Gadget", me.Name)

	got, err := e.usrRepo.GetUser(context.Background(), user.GetFilter{ID: insp.ID})
	require.NoError(t, err)
	assert.Equal(t, "Inspector Gadget", got.Name)
	assert.Equal(t, []string{user.RoleInspector}, got.Roles)
}

func Test_userApi_passwordReset(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "Jane Sparks", "jsparks", "jane@test.com", "Old&Pa55word", nil, true)
	success := marshalObj(t, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})

	runHTTPTests(t, e, []httpTest{
		{
			name: "invalid email", method: http.MethodPost, path: "/v1/users/password-reset", body: []byte(`{"email": "nope"}`),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
		{
			name: "unknown email does not leak", method: http.MethodPost, path: "/v1/users/password-reset",
			body: []byte(`{"email": "who@test.com"}`), wantCode: http.StatusOK, wantData: success,
		},
	})
	assert.Empty(t, e.mailSvc.SentMessages())

	req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", []byte(`{"email": "JANE@test.com"}`))
	e.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)

	sent := e.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, usr.Email, sent[0].To[0].Address)
	match := regexp.MustCompile(`/password-reset/([\w-]+)/([\w-]+)`).FindStringSubmatch(sent[0].TextContent)
	require.Len(t, match, 3, sent[0].TextContent)
	uid, token := match[1], match[2]

	confirm := func(uid, token string) []byte {
		return marshalObj(t, user.ResetUserPassword{UID: uid, Token: token, Password: "N3w&Pa55word", PasswordConfirm: "N3w&Pa55word"})
	}
	runHTTPTests(t, e, []httpTest{
		{
			name: "bad token", method: http.MethodPost, path: "/v1/users/password-reset-confirm", body: confirm(uid, "1-abc"),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "confirmed", method: http.MethodPost, path: "/v1/users/password-reset-confirm", body: confirm(uid, token),
			wantCode: http.StatusOK, wantData: marshalObj(t, SuccessResponse{Success: "Password has been reset with the new password."}),
		},
		{
			name: "token is single use", method: http.MethodPost, path: "/v1/users/password-reset-confirm", body: confirm(uid, token),
			wantCode: http.StatusBadRequest,
		},
	})

	got, err := e.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.NoError(t, got.CheckPassword("N3w&Pa55word"))
	assert.False(t, strings.Contains(string(got.PasswordHash), "N3w"))
}
