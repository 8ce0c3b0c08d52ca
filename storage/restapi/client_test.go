package restapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/guard"
	"github.com/trezcool/masomo-portal/core/note"
	"github.com/trezcool/masomo-portal/core/school"
	"github.com/trezcool/masomo-portal/core/user"
)

type recorded struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]interface{}
}

// fakeAPI answers every request with the response registered for "METHOD /path".
type fakeAPI struct {
	t         *testing.T
	responses map[string]fakeResponse
	requests  []recorded
}

type fakeResponse struct {
	code int
	body string
}

func newFakeAPI(t *testing.T, responses map[string]fakeResponse) (*fakeAPI, *Client) {
	api := &fakeAPI{t: t, responses: responses}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, NewClient(srv.URL+"/", time.Second, WithToken("tok"))
}

func (api *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, auth: r.Header.Get("Authorization")}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		assert.NoError(api.t, json.Unmarshal(data, &rec.body))
	}
	api.requests = append(api.requests, rec)

	res, ok := api.responses[r.Method+" "+r.URL.Path]
	if !ok {
		res = fakeResponse{code: http.StatusNotFound, body: `{"error":"no such route"}`}
	}
	w.Header().Set("Content-Type", "application/json")
	if res.code == 0 {
		res.code = http.StatusOK
	}
	w.WriteHeader(res.code)
	_, _ = io.WriteString(w, res.body)
}

func (api *fakeAPI) last() recorded {
	require.NotEmpty(api.t, api.requests)
	return api.requests[len(api.requests)-1]
}

func TestClient_SaveNote(t *testing.T) {
	api, c := newFakeAPI(t, map[string]fakeResponse{
		"POST /notes":   {code: http.StatusCreated, body: `{"id":"n1","title":"Algebra Notes","content":"<p>x+1=2</p>","tags":["math","homework"]}`},
		"PUT /notes/n1": {body: `{"title":"Algebra Notes","content":"<p>x+1=2</p>","tags":["math","homework"]}`},
	})
	p := note.Payload{Title: "Algebra Notes", Content: "<p>x+1=2</p>", Tags: []string{"math", "homework"}}

	n, err := c.SaveNote(context.Background(), "", p)
	require.NoError(t, err)
	assert.Equal(t, "n1", n.ID)
	req := api.last()
	assert.Equal(t, "POST", req.method)
	assert.Equal(t, "Bearer tok", req.auth)
	assert.Equal(t, map[string]interface{}{
		"title":   "Algebra Notes",
		"content": "<p>x+1=2</p>",
		"tags":    []interface{}{"math", "homework"},
	}, req.body)

	n, err = c.SaveNote(context.Background(), "n1", p)
	require.NoError(t, err)
	assert.Equal(t, "n1", n.ID, "id kept when the api omits it")
	assert.Equal(t, "PUT", api.last().method)

	_, err = c.SaveNote(context.Background(), "", note.Payload{Title: "untagged"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{}, api.last().body["tags"])
}

func TestClient_Errors(t *testing.T) {
	_, c := newFakeAPI(t, map[string]fakeResponse{
		"GET /auth/me":             {code: http.StatusUnauthorized, body: `{"message":"token expired"}`},
		"GET /subscription/status": {code: http.StatusBadGateway, body: "<html>bad gateway</html>"},
		"GET /notes":               {body: `{"not":"a list"}`},
	})
	ctx := context.Background()

	_, err := c.Me(ctx)
	require.Error(t, err)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "token expired", apiErr.Message)
	assert.Equal(t, guard.CondUnauthorized, guard.Classify(err))

	_, err = c.SubscriptionStatus(ctx)
	assert.Equal(t, guard.CondNetworkError, guard.Classify(err))

	_, err = c.GetNote(ctx, "missing")
	assert.True(t, IsNotFound(err))

	_, err = c.ListNotes(ctx)
	assert.Equal(t, guard.CondMalformed, guard.Classify(err))
}

func Test_errorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "json error", body: `{"error":"quota reached"}`, want: "quota reached"},
		{name: "json message", body: `{"message":"token expired"}`, want: "token expired"},
		{name: "plain", body: "  bad gateway\n", want: "bad gateway"},
		{name: "long ascii", body: strings.Repeat("a", 250), want: strings.Repeat("a", maxErrorBody) + "..."},
		// "é" is two bytes: byte 200 is the second half of the 100th one
		{name: "long multibyte", body: "x" + strings.Repeat("é", 150), want: "x" + strings.Repeat("é", 99) + "..."},
		{name: "long cjk", body: strings.Repeat("错误", 50), want: strings.Repeat("错误", 33) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errorMessage(tt.body)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestClient_SubscriptionStatus(t *testing.T) {
	_, c := newFakeAPI(t, map[string]fakeResponse{
		"GET /subscription/status": {body: `{"isActive":false,"expiryDate":"2024-01-01"}`},
	})
	st, err := c.SubscriptionStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, st.IsActive)
	require.NotNil(t, st.ExpiryDate)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), st.ExpiryDate.UTC())
}

func TestClient_Reads(t *testing.T) {
	api, c := newFakeAPI(t, map[string]fakeResponse{
		"GET /notes":                      {body: `[{"id":"a","title":"A"},{"id":"b","title":"B"}]`},
		"GET /notifications/unread-count": {body: `{"count":3}`},
		"GET /grades":                     {body: `[{"id":"g1","score":15,"maxScore":20}]`},
		"POST /auth/login":                {body: `{"token":"jwt","user":{"id":"u1","role":"teacher"}}`},
	})
	ctx := context.Background()

	notes, err := c.ListNotes(ctx, core.Ordering{Field: "title", Ascending: true}, core.Ordering{Field: "updatedAt"})
	require.NoError(t, err)
	assert.Len(t, notes, 2)
	assert.Equal(t, "ordering=title%2C-updatedAt", api.last().query)

	n, err := c.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	grades, err := c.ListGrades(ctx)
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, 75.0, grades[0].Percent())

	res, err := c.WithToken("").Login(ctx, user.Credentials{Email: "t@test.cd", Password: "pwd"})
	require.NoError(t, err)
	assert.Equal(t, "jwt", res.Token)
	assert.Equal(t, "teacher", res.User.Role)
	assert.Empty(t, api.last().auth)
	assert.Equal(t, "tok", c.Token(), "WithToken copies")
}

func TestClient_Writes(t *testing.T) {
	api, c := newFakeAPI(t, map[string]fakeResponse{
		"POST /grades":                 {code: http.StatusCreated, body: `{"id":"g1"}`},
		"PATCH /notifications/n1/read": {code: http.StatusNoContent},
		"DELETE /notifications/n1":     {code: http.StatusNoContent},
		"DELETE /notes/n1":             {code: http.StatusNoContent},
	})
	ctx := context.Background()
	score := 12.0

	g, err := c.CreateGrade(ctx, school.GradeForm{StudentID: "s1", CourseID: "c1", Score: &score, MaxScore: 20, Term: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "g1", g.ID)
	assert.Equal(t, 12.0, api.last().body["score"])

	require.NoError(t, c.MarkNotificationRead(ctx, "n1"))
	require.NoError(t, c.DeleteNotification(ctx, "n1"))
	require.NoError(t, c.DeleteNote(ctx, "n1"))
	assert.Error(t, c.DeleteNote(ctx, ""))
}

func TestClient_Cancelled(t *testing.T) {
	_, c := newFakeAPI(t, map[string]fakeResponse{"GET /users": {body: `[]`}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListUsers(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
