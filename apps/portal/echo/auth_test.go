package echoportal

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core/user"
)

func Test_authApi_login(t *testing.T) {
	app := setup(t, user.Profile{ID: "t1", Name: "Awa Mbuyi", Email: "awa@test.cd", Role: "teacher"})

	tests := []httpTest{
		{
			name:     "Invalid data",
			body:     []byte(`{"email":"nope"}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{
				"email":    "email must be a valid email address",
				"password": "this field is required",
			}),
		},
		{
			name:     "Valid",
			body:     marshalObj(t, user.Credentials{Email: " AWA@test.cd ", Password: "Secret-123"}),
			wantCode: http.StatusOK,
			wantData: marshalObj(t, LoginResponse{
				User:     user.Profile{ID: "t1", Name: "Awa Mbuyi", Email: "awa@test.cd", Role: "teacher"},
				Redirect: "/dashboard/teacher",
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, http.MethodPost, "/v1/auth/login", nil, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	sent := app.remote.received(http.MethodPost, "/auth/login")
	require.Len(t, sent, 1, "invalid data never reaches the api")
	assert.Equal(t, "awa@test.cd", sent[0].body["email"])
}

func Test_authApi_loginRejected(t *testing.T) {
	app := setup(t, user.Profile{})
	app.remote.handle("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad credentials"})
	})

	rec := app.do(t, http.MethodPost, "/v1/auth/login", nil, marshalObj(t, user.Credentials{Email: "awa@test.cd", Password: "wrong"}))
	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "invalid credentials"})}, rec)
	assert.Empty(t, rec.Result().Cookies())
}

func Test_authApi_session(t *testing.T) {
	profile := user.Profile{ID: "s1", Name: "Awa", Email: "awa@test.cd", Role: "student"}
	app := setup(t, profile)
	cookie := app.login(t)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 1, app.Sessions.Count())

	rec := app.do(t, http.MethodGet, "/v1/auth/me", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var me MeResponse
	decode(t, rec, &me)
	assert.Equal(t, profile, me.User)

	rec = app.do(t, http.MethodGet, "/v1/auth/unread-count", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodPost, "/v1/auth/logout", cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, app.Sessions.Count())

	tests := []httpTest{
		{name: "No cookie", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, httpErr{Error: "user not authenticated"})},
		{name: "Logged out", cookie: cookie, wantCode: http.StatusUnauthorized, wantData: marshalObj(t, httpErr{Error: "user not authenticated"})},
		{
			name:     "Unknown session",
			cookie:   &http.Cookie{Name: cookieName, Value: "forged"},
			wantCode: http.StatusUnauthorized,
			wantData: marshalObj(t, httpErr{Error: "user not authenticated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(t, http.MethodGet, "/v1/auth/me", tt.cookie))
		})
	}
}

func Test_authApi_changePassword(t *testing.T) {
	profile := user.Profile{ID: "s1", Name: "Awa Mbuyi", Email: "awa@test.cd", Role: "student", IsFirstLogin: true}
	app := setup(t, profile)

	rec := app.do(t, http.MethodPost, "/v1/auth/login", nil, marshalObj(t, user.Credentials{Email: "awa@test.cd", Password: "Secret-123"}))
	require.Equal(t, http.StatusOK, rec.Code)
	var res LoginResponse
	decode(t, rec, &res)
	assert.Equal(t, "/change-password", res.Redirect)
	cookie := rec.Result().Cookies()[0]

	// the dashboard sends first-time users to the password form
	rec = app.do(t, http.MethodGet, "/v1/dashboard/student", cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/change-password", rec.Header().Get("Location"))

	rec = app.do(t, http.MethodPost, "/v1/auth/change-password", cookie,
		[]byte(`{"currentPassword":"Secret-123","password":"Secret-123","passwordConfirm":"Secret-123"}`))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marshalObj(t, map[string]string{"password": "new password must differ from the current one"}),
	}, rec)

	app.remote.handle("POST /auth/change-password", func(w http.ResponseWriter, r *http.Request) {
		done := profile
		done.IsFirstLogin = false
		app.remote.setProfile(done)
		w.WriteHeader(http.StatusNoContent)
	})
	rec = app.do(t, http.MethodPost, "/v1/auth/change-password", cookie,
		[]byte(`{"currentPassword":"Secret-123","password":"Kin$hasa-2024","passwordConfirm":"Kin$hasa-2024"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &res)
	assert.Equal(t, "/dashboard/student", res.Redirect)
	assert.False(t, res.User.IsFirstLogin)

	sent := app.remote.received(http.MethodPost, "/auth/change-password")
	require.Len(t, sent, 1)
	assert.Equal(t, map[string]interface{}{"currentPassword": "Secret-123", "password": "Kin$hasa-2024"}, sent[0].body)

	// guards were reset with the profile
	rec = app.do(t, http.MethodGet, "/v1/dashboard/student", cookie)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
