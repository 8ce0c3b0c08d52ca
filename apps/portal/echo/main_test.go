package echoportal

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/school"
	"github.com/trezcool/masomo-portal/core/user"
	emailsvc "github.com/trezcool/masomo-portal/services/email"
	"github.com/trezcool/masomo-portal/storage/inmem"
	"github.com/trezcool/masomo-portal/storage/restapi"
)

const cookieName = "masomo_session"

// remote is a fake school API. Handlers registered under "METHOD /path" win over the defaults.
type remote struct {
	t *testing.T

	mu       sync.Mutex
	profile  user.Profile
	status   string
	handlers map[string]http.HandlerFunc
	requests []remoteRequest

	gate chan struct{} // when set, /subscription/status waits on it
}

type remoteRequest struct {
	method, path string
	body         map[string]interface{}
}

func (rm *remote) handle(route string, h http.HandlerFunc) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.handlers[route] = h
}

func (rm *remote) setProfile(p user.Profile) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.profile = p
}

func (rm *remote) setStatus(s string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.status = s
}

func (rm *remote) received(method, path string) []remoteRequest {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	var out []remoteRequest
	for _, r := range rm.requests {
		if r.method == method && r.path == path {
			out = append(out, r)
		}
	}
	return out
}

func (rm *remote) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := remoteRequest{method: r.Method, path: r.URL.Path}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &rec.body)
	}

	rm.mu.Lock()
	rm.requests = append(rm.requests, rec)
	h, ok := rm.handlers[r.Method+" "+r.URL.Path]
	profile, status, gate := rm.profile, rm.status, rm.gate
	rm.mu.Unlock()

	if ok {
		h(w, r)
		return
	}
	switch r.Method + " " + r.URL.Path {
	case "POST /auth/login":
		writeJSON(w, http.StatusOK, restapi.LoginResponse{Token: newToken(rm.t, time.Hour), User: profile})
	case "GET /auth/me":
		writeJSON(w, http.StatusOK, profile)
	case "GET /subscription/status":
		if gate != nil {
			<-gate
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, status)
	case "GET /notifications/unread-count":
		writeJSON(w, http.StatusOK, map[string]int{"count": 2})
	case "GET /users", "GET /courses", "GET /exams", "GET /assignments", "GET /grades", "GET /notifications":
		writeJSON(w, http.StatusOK, []interface{}{})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func newToken(t *testing.T, ttl time.Duration) string {
	claims := user.Claims{StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(ttl).Unix()}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("newToken(): %v", err)
	}
	return token
}

type testApp struct {
	*Server
	remote *remote
	mail   *emailsvc.ConsoleService
}

func setup(t *testing.T, profile user.Profile) *testApp {
	rm := &remote{
		t:        t,
		profile:  profile,
		status:   `{"isActive":true}`,
		handlers: make(map[string]http.HandlerFunc),
	}
	api := httptest.NewServer(rm)
	t.Cleanup(api.Close)

	conf := &core.Config{
		TestMode: true,
		AppName:  "Masomo",
		Session:  core.SessionConfig{CookieName: cookieName},
		Guard: core.GuardConfig{
			LoadingTimeout: 2 * time.Second,
			CacheTTL:       time.Minute,
			RenewURL:       "/subscription/renew",
			LoginURL:       "/login",
			PasswordURL:    "/change-password",
		},
		NotificationPollInterval: time.Hour,
		ExportWrapWidth:          180,
	}
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)

	sessions := inmem.NewSessionRepository()
	t.Cleanup(func() { sessions.Sweep(-time.Hour) })

	mail := emailsvc.NewConsoleServiceMock(conf)
	srv := NewServer(ServerDeps{
		Conf:           conf,
		Sessions:       sessions,
		API:            RestAPIFactory(restapi.NewClient(api.URL, time.Second)),
		MailSvc:        mail,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	t.Cleanup(func() { _ = srv.Close() })
	return &testApp{Server: srv, remote: rm, mail: mail}
}

// login signs the remote profile in and returns the session cookie.
func (app *testApp) login(t *testing.T) *http.Cookie {
	req, rec := newRequest(http.MethodPost, "/v1/auth/login", nil, marshalObj(t, user.Credentials{Email: "awa@test.cd", Password: "Secret-123"}))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	t.Fatal("login(): no session cookie")
	return nil
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	cookie   *http.Cookie
	wantCode int
	wantData []byte
}

func newRequest(method, path string, cookie *http.Cookie, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req, httptest.NewRecorder()
}

func (app *testApp) do(t *testing.T, method, path string, cookie *http.Cookie, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newRequest(method, path, cookie, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj(): %v", err)
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

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}
