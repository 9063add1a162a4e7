package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/reconsole/internal/api"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(api.New(srv.URL, time.Second, nil))
}

func TestCreateUserRequestValidate(t *testing.T) {
	t.Parallel()

	valid := CreateUserRequest{Email: "a@b.co", Password: "longenough", Name: "A"}
	require.NoError(t, valid.Validate())

	cases := map[string]CreateUserRequest{
		"no at sign":     {Email: "nope", Password: "longenough", Name: "A"},
		"space in email": {Email: "a @b.co", Password: "longenough", Name: "A"},
		"short password": {Email: "a@b.co", Password: "1234567", Name: "A"},
		"missing name":   {Email: "a@b.co", Password: "longenough", Name: "  "},
	}
	for name, req := range cases {
		require.Error(t, req.Validate(), name)
	}
}

func TestIsAdmin(t *testing.T) {
	t.Parallel()

	require.True(t, IsAdmin([]string{"viewer", "admin"}))
	require.False(t, IsAdmin([]string{"viewer"}))
	require.False(t, IsAdmin(nil))
}

func TestUpdateRole(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/api/v1/users/u-2/roles", r.URL.Path)
		var op RoleOp
		require.NoError(t, json.NewDecoder(r.Body).Decode(&op))
		require.Equal(t, "admin", op.Role)
		require.Equal(t, "add", op.Operation)
		_, _ = w.Write([]byte(`{"roles":["viewer","admin"]}`))
	}))

	roles, err := c.UpdateRole(context.Background(), "u-2", RoleOp{Role: "admin", Operation: "add"})
	require.NoError(t, err)
	require.Equal(t, []string{"viewer", "admin"}, roles)
}

func TestCreateRejectsInvalidLocally(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("invalid account must not reach the backend")
	}))

	_, err := c.Create(context.Background(), CreateUserRequest{Email: "bad", Password: "x", Name: ""})
	require.Error(t, err)
}

func TestRolesAndList(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/users":
			_, _ = w.Write([]byte(`[{"id":"u-1","email":"a@b.co","name":"A"},{"id":"u-2","email":"c@d.co","name":"C"}]`))
		case "/api/v1/users/u-1/roles":
			_, _ = w.Write([]byte(`{"roles":["admin"]}`))
		default:
			http.NotFound(w, r)
		}
	}))

	list, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	roles, err := c.Roles(context.Background(), "u-1")
	require.NoError(t, err)
	require.Equal(t, []string{"admin"}, roles)
}
