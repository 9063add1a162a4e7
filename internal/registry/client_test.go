package registry

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

func TestCreateRoundTrip(t *testing.T) {
	t.Parallel()

	schema := &SchemaDefinition{
		Fields: []SchemaField{
			{Name: "date", Type: FieldTypeDate, Required: true},
			{Name: "amount", Type: FieldTypeNumber, Required: true},
		},
		DateFormat:      "02/01/2006",
		DefaultMappings: map[string]string{"date": "Txn Date"},
		RequiredFields:  []string{"date", "amount"},
	}

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/datasources", r.URL.Path)

		var req CreateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "ANZ Personal", req.Name)
		// schema travels verbatim
		require.Equal(t, schema, req.SchemaDefinition)

		ds := DataSource{ID: "ds-1", Name: req.Name, Description: req.Description, SchemaDefinition: req.SchemaDefinition}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(ds))
	}))

	got, err := c.Create(context.Background(), CreateRequest{
		Name:             "ANZ Personal",
		Description:      "bank feed",
		SchemaDefinition: schema,
	})
	require.NoError(t, err)
	require.Equal(t, "ds-1", got.ID)
	require.Equal(t, schema, got.SchemaDefinition)
}

func TestCreateRejectsInvalidSchemaLocally(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("invalid schema must not reach the backend")
	}))

	_, err := c.Create(context.Background(), CreateRequest{
		Name: "broken",
		SchemaDefinition: &SchemaDefinition{
			Fields:         []SchemaField{{Name: "date", Type: FieldTypeDate}},
			RequiredFields: []string{"amount"},
		},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "amount")
}

func TestSearchQueryAndPaging(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/datasources/search", r.URL.Path)
		require.Equal(t, "bank", r.URL.Query().Get("q"))
		require.Equal(t, "10", r.URL.Query().Get("limit"))
		require.Equal(t, "20", r.URL.Query().Get("offset"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data":[{"id":"ds-9","name":"Bank A"}],
			"pagination":{"total":31,"limit":10,"offset":20,"hasMore":true}
		}`))
	}))

	page, err := c.Search(context.Background(), "bank", 10, 20)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	require.Equal(t, "Bank A", page.Data[0].Name)
	require.Equal(t, 31, page.Pagination.Total)
	require.True(t, page.Pagination.HasMore)
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := c.Get(context.Background(), "nope")
	require.Error(t, err)
	require.True(t, api.IsNotFound(err))
}

func TestDelete(t *testing.T) {
	t.Parallel()

	var gotMethod, gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.Delete(context.Background(), "ds-1"))
	require.Equal(t, http.MethodDelete, gotMethod)
	require.Equal(t, "/api/v1/datasources/ds-1", gotPath)
}
