package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/term"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
)

type request struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]interface{}
}

// remote answers every request with the body registered for "METHOD /path".
type remote struct {
	t         *testing.T
	mu        sync.Mutex
	responses map[string]string
	requests  []request
}

func (api *remote) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := request{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, auth: r.Header.Get("Authorization")}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		assert.NoError(api.t, json.Unmarshal(data, &req.body))
	}

	api.mu.Lock()
	api.requests = append(api.requests, req)
	body, ok := api.responses[r.Method+" "+r.URL.Path]
	api.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		body = `{"error":"not found"}`
	}
	_, _ = io.WriteString(w, body)
}

func (api *remote) sent() []request {
	api.mu.Lock()
	defer api.mu.Unlock()
	return append([]request{}, api.requests...)
}

type testCLI struct {
	conf   *core.Config
	remote *remote
	url    string
	token  string
}

func setup(t *testing.T, responses map[string]string) *testCLI {
	t.Setenv(tokenEnv, "")
	api := &remote{t: t, responses: responses}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	return &testCLI{
		conf: &core.Config{
			APITimeout:      time.Second,
			ExportWrapWidth: 180,
			Guard: core.GuardConfig{
				RenewURL:    "/subscription/renew",
				LoginURL:    "/login",
				PasswordURL: "/change-password",
			},
		},
		remote: api,
		url:    srv.URL,
		token:  newToken(t, time.Hour),
	}
}

func newToken(t *testing.T, ttl time.Duration) string {
	claims := user.Claims{StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(ttl).Unix()}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("newToken(): %v", err)
	}
	return token
}

// run executes portalctl against the fake API, signed in unless args set --token.
func (tc *testCLI) run(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	root := newRootCmd(tc.conf)
	root.SetArgs(append([]string{"--api", tc.url, "--token", tc.token}, args...))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), tt.wantErrStr)
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_usage(t *testing.T) {
	tc := setup(t, nil)

	tests := []cliTest{
		{name: "not signed in", args: []string{"--token", "", "notes", "list"}, wantErr: errNoToken},
		{name: "not signed in: subscription", args: []string{"--token", "", "subscription", "check"}, wantErr: errNoToken},
		{name: "login: no email", args: []string{"login"}, wantErrStr: `required flag(s) "email" not set`},
		{name: "export: no note", args: []string{"notes", "export"}, wantErrStr: "accepts 1 arg(s), received 0"},
		{name: "import: no glob", args: []string{"notes", "import"}, wantErrStr: "accepts 1 arg(s), received 0"},
		{name: "validate: missing file", args: []string{"policy", "validate", filepath.Join(t.TempDir(), "nope.yml")}, wantErrStr: "reading guard policy"},
		{name: "unknown command", args: []string{"grades"}, wantErrStr: `unknown command "grades"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tc.run(tt.args...)
			tt.check(t, err)
		})
	}
}

func Test_login(t *testing.T) {
	tc := setup(t, map[string]string{
		"POST /auth/login": `{"token":"abc.def.ghi","user":{"id":"u1","role":"teacher","name":"Ada","isFirstLogin":true}}`,
	})
	defer func() { readPasswordFunc = term.ReadPassword }()

	tests := []cliTest{
		{name: "empty password", args: []string{"login", "-e", "ada@school.test"}, wantErrStr: "invalid credentials: password: this field is required", extra: ""},
		{name: "invalid email", args: []string{"login", "-e", "ada"}, wantErrStr: "invalid credentials: email: ", extra: "secret"},
		{name: "signed in", args: []string{"login", "-e", " Ada@School.test "}, extra: "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pwd := tt.extra.(string)
			readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }

			out, errOut, err := tc.run(tt.args...)
			tt.check(t, err)
			if err == nil {
				assert.Equal(t, "abc.def.ghi\n", out)
				assert.Contains(t, errOut, "First login")

				reqs := tc.remote.sent()
				require.Len(t, reqs, 1)
				assert.Equal(t, "ada@school.test", reqs[0].body["email"])
				assert.Equal(t, "secret", reqs[0].body["password"])
			}
		})
	}
}

func Test_notesList(t *testing.T) {
	tc := setup(t, map[string]string{
		"GET /notes": `[
			{"id":"n2","title":"zoology","tags":[]},
			{"id":"n1","title":"Algebra Notes","tags":["math","homework"]}
		]`,
	})

	out, _, err := tc.run("notes", "list", "-o", "title")
	require.NoError(t, err)
	assert.Equal(t, "n1\tAlgebra Notes\tmath,homework\nn2\tzoology\t\n", out)

	reqs := tc.remote.sent()
	require.Len(t, reqs, 1)
	assert.Equal(t, "ordering=title", reqs[0].query)
	assert.Equal(t, "Bearer "+tc.token, reqs[0].auth)
}

func Test_notesExport(t *testing.T) {
	tc := setup(t, map[string]string{
		"GET /notes/n1": `{"id":"n1","title":"Algebra Notes","content":"<p>x+1=2</p>","tags":["math"]}`,
	})
	dir := t.TempDir()

	tests := []cliTest{
		{name: "unknown format", args: []string{"notes", "export", "n1", "-f", "doc"}, wantErrStr: `unknown format "doc": must be one of txt or pdf`},
		{name: "unknown note", args: []string{"notes", "export", "n9"}, wantErrStr: "remote api: 404"},
		{name: "txt", args: []string{"notes", "export", "n1", "--out", dir}, extra: "algebranotes.txt"},
		{name: "pdf", args: []string{"notes", "export", "n1", "-f", ".PDF", "--out", dir}, extra: "algebranotes.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := tc.run(tt.args...)
			tt.check(t, err)
			if tt.extra == nil {
				return
			}
			path := filepath.Join(dir, tt.extra.(string))
			assert.Equal(t, path+"\n", out)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			if strings.HasSuffix(path, ".txt") {
				assert.Equal(t, "Algebra Notes\n\nx+1=2", string(data))
			} else {
				assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
			}
		})
	}
}

func Test_notesImport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a", "fractions.md"), "---\ntitle: Fractions\ntags: [math]\n---\n# Halves\n\nOne *half* is 1/2.\n")
	writeFile(t, filepath.Join(dir, "b", "c", "reading-list.md"), "- Things Fall Apart\n- Half of a Yellow Sun\n")
	writeFile(t, filepath.Join(dir, "b", "ignored.txt"), "not markdown")

	t.Run("no match", func(t *testing.T) {
		tc := setup(t, nil)
		_, _, err := tc.run("notes", "import", filepath.Join(dir, "**", "*.rst"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no files match")
	})

	t.Run("dry run", func(t *testing.T) {
		tc := setup(t, nil)
		out, _, err := tc.run("notes", "import", "--dry-run", filepath.Join(dir, "**", "*.md"))
		require.NoError(t, err)
		assert.Contains(t, out, `as "Fractions"`)
		assert.Contains(t, out, `as "reading-list"`)
		assert.Empty(t, tc.remote.sent())
	})

	t.Run("import", func(t *testing.T) {
		tc := setup(t, map[string]string{
			"POST /notes": `{"id":"new1","title":"x","content":"","tags":[]}`,
		})
		out, _, err := tc.run("notes", "import", "-t", "imported", "-t", "math", filepath.Join(dir, "**", "*.md"))
		require.NoError(t, err)
		assert.Equal(t, 2, strings.Count(out, "as new1\n"))

		reqs := tc.remote.sent()
		require.Len(t, reqs, 2)
		bodies := make(map[string]map[string]interface{})
		for _, r := range reqs {
			assert.Equal(t, http.MethodPost, r.method)
			bodies[r.body["title"].(string)] = r.body
		}

		require.Contains(t, bodies, "Fractions")
		assert.Equal(t, []interface{}{"math", "imported"}, bodies["Fractions"]["tags"])
		assert.Contains(t, bodies["Fractions"]["content"], "<em>half</em>")

		require.Contains(t, bodies, "reading-list")
		assert.Equal(t, []interface{}{"imported", "math"}, bodies["reading-list"]["tags"])
		assert.Contains(t, bodies["reading-list"]["content"], "Things Fall Apart")
	})

	t.Run("save fails", func(t *testing.T) {
		tc := setup(t, nil)
		_, errOut, err := tc.run("notes", "import", filepath.Join(dir, "a", "*.md"))
		require.Error(t, err)
		assert.Equal(t, "1 of 1 files not imported", err.Error())
		assert.Contains(t, errOut, "failed "+filepath.Join(dir, "a", "fractions.md"))
	})
}

func writeFile(t *testing.T, path, content string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func Test_subscriptionCheck(t *testing.T) {
	me := `{"id":"u1","role":"student","name":"Ada"}`

	tests := []cliTest{
		{
			name:       "expired",
			wantErrStr: "access blocked",
			extra: []string{
				`{"isActive":false,"expiryDate":"2024-01-01"}`,
				"state: blocked\ncondition: expired\nnotice: Your subscription has expired.\naction: Renew subscription (/subscription/renew)\n",
			},
		},
		{
			name:       "malformed",
			wantErrStr: "access blocked",
			extra:      []string{`{"expiryDate":"2024-01-01"}`, "condition: malformed\n"},
		},
		{
			name:  "active",
			extra: []string{`{"isActive":true}`, "state: authorized\n"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extra := tt.extra.([]string)
			tc := setup(t, map[string]string{
				"GET /auth/me":             me,
				"GET /subscription/status": extra[0],
			})
			out, _, err := tc.run("subscription", "check")
			tt.check(t, err)
			assert.Contains(t, out, extra[1])
		})
	}

	t.Run("expired token", func(t *testing.T) {
		tc := setup(t, nil)
		tc.token = newToken(t, -time.Hour)
		out, _, err := tc.run("subscription", "check")
		assert.EqualError(t, err, "access blocked")
		assert.Contains(t, out, "redirect: /login\n")
		assert.Empty(t, tc.remote.sent(), "an expired token is rejected before calling the API")
	})
}

func Test_policyValidate(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "valid.yml")
	writeFile(t, valid, "maxRetries: 2\nrules:\n  malformed:\n    outcome: redirect\n    url: /support\n")
	invalid := filepath.Join(dir, "invalid.yml")
	writeFile(t, invalid, "rules:\n  expired:\n    outcome: shrug\n")
	tc := setup(t, nil)

	tests := []cliTest{
		{name: "valid", args: []string{"policy", "validate", valid}, extra: valid + ": ok\n"},
		{name: "show", args: []string{"policy", "validate", "--show", valid}, extra: "maxRetries: 2\n"},
		{name: "invalid", args: []string{"policy", "validate", invalid}, wantErrStr: "invalid guard policy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := tc.run(tt.args...)
			tt.check(t, err)
			if tt.extra != nil {
				assert.Contains(t, out, tt.extra.(string))
			}
		})
	}
}
