package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBearerInjection(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, time.Second, func() string { return "tok-123" })
	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.GetJSON(context.Background(), "/thing", &out))
	require.True(t, out.OK)
	require.Equal(t, "Bearer tok-123", gotAuth)
}

func TestNoTokenMeansNoHeader(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, time.Second, func() string { return "" })
	require.NoError(t, c.GetJSON(context.Background(), "/thing", nil))
	require.Empty(t, gotAuth)
}

func TestErrorShape(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no such data source"}`, http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, time.Second, nil)
	err := c.GetJSON(context.Background(), "/api/v1/datasources/nope", nil)
	require.Error(t, err)

	require.True(t, IsNotFound(err))
	require.Equal(t, http.StatusNotFound, StatusCode(err))
	require.Contains(t, err.Error(), "no such data source")
	require.Contains(t, err.Error(), "GET /api/v1/datasources/nope")
}

func TestUnauthorizedHookFiresOnce(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, time.Second, nil)
	var mu sync.Mutex
	fired := 0
	c.OnUnauthorized(func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	// several concurrent in-flight requests all see 401; teardown must not
	// stampede into repeated redirects
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.GetJSON(context.Background(), "/api/v1/users/me", nil)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, fired)

	// a new session generation re-arms the hook
	c.Rearm()
	_ = c.GetJSON(context.Background(), "/api/v1/users/me", nil)
	require.Equal(t, 2, fired)
}

func TestUploadFile(t *testing.T) {
	t.Parallel()

	var gotField, gotFile, gotName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotField = r.FormValue("dataSourceId")
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		gotName = hdr.Filename
		buf := make([]byte, hdr.Size)
		_, _ = f.Read(buf)
		gotFile = string(buf)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"previewUrl":"/tmp/p-1.csv"}`))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, time.Second, nil)
	var out struct {
		PreviewURL string `json:"previewUrl"`
	}
	err := c.UploadFile(context.Background(), "/api/v1/uploads/preview", "file", "jan.csv",
		strings.NewReader("a,b\n1,2\n"), map[string]string{"dataSourceId": "ds-1"}, &out)
	require.NoError(t, err)
	require.Equal(t, "ds-1", gotField)
	require.Equal(t, "jan.csv", gotName)
	require.Equal(t, "a,b\n1,2\n", gotFile)
	require.Equal(t, "/tmp/p-1.csv", out.PreviewURL)
}

func TestPageQuery(t *testing.T) {
	t.Parallel()

	require.Equal(t, "?limit=10&offset=20", PageQuery("", 10, 20))
	require.Equal(t, "?limit=5&offset=0&q=bank", PageQuery("bank", 5, 0))
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, time.Second, nil)
	require.NoError(t, c.Health(context.Background()))
}
