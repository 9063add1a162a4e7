package wizard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/reconsole/internal/api"
	"github.com/jask/reconsole/internal/registry"
)

const csvBody = "Txn Date,Desc,Amt,Ref\n03/01/2026,coffee,-4.50,r-1\n04/01/2026,rent,-320.00,r-2\n"

func anzSource() registry.DataSource {
	return registry.DataSource{
		ID:   "ds-1",
		Name: "ANZ Personal",
		SchemaDefinition: &registry.SchemaDefinition{
			Fields: []registry.SchemaField{
				{Name: "date", Type: registry.FieldTypeDate, Required: true},
				{Name: "description", Type: registry.FieldTypeString, Required: true},
				{Name: "amount", Type: registry.FieldTypeNumber, Required: true},
				{Name: "reference", Type: registry.FieldTypeString, Required: true},
			},
			DateFormat: "02/01/2006",
			DefaultMappings: map[string]string{
				"date":        "Txn Date",
				"description": "Desc",
				"amount":      "Amt",
				"reference":   "Ref",
			},
			RequiredFields: []string{"date", "description", "amount", "reference"},
		},
	}
}

// previewServer answers the preview upload with the parsed header and rows
// and records the process payload for inspection.
func previewServer(t *testing.T, suggested map[string]int, inlineRows bool) (*httptest.Server, *ProcessRequest) {
	t.Helper()
	var captured ProcessRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/uploads/preview", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "ds-1", r.FormValue("dataSourceId"))
		resp := PreviewResponse{
			PreviewURL:        "/tmp/preview-42.csv",
			Columns:           []string{"Txn Date", "Desc", "Amt", "Ref"},
			SuggestedMappings: suggested,
		}
		if inlineRows {
			resp.Preview = [][]string{
				{"Txn Date", "Desc", "Amt", "Ref"},
				{"03/01/2026", "coffee", "-4.50", "r-1"},
			}
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})
	mux.HandleFunc("/api/v1/uploads/preview-data", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tmp/preview-42.csv", r.URL.Query().Get("url"))
		_, _ = w.Write([]byte(`{"data":[["Txn Date","Desc","Amt","Ref"],["03/01/2026","coffee","-4.50","r-1"]]}`))
	})
	mux.HandleFunc("/api/v1/uploads/process", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"success":true,"message":"queued","importId":"imp-7"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &captured
}

func TestFullFlowWithSchemaDefaults(t *testing.T) {
	t.Parallel()

	srv, captured := previewServer(t, nil, true)
	w := New(api.New(srv.URL, time.Second, nil), "")

	require.NoError(t, w.SelectSource(anzSource()))
	require.Equal(t, "02/01/2006", w.DateFormat(), "schema date format wins over the default")
	require.NoError(t, w.Next())
	require.Equal(t, StepUpload, w.Step())

	err := w.Upload(context.Background(), "jan.csv", int64(len(csvBody)), strings.NewReader(csvBody))
	require.NoError(t, err)

	// every required field resolves from the schema's default mappings, so
	// the mapping gate is skipped
	require.Equal(t, StepConfirm, w.Step())
	require.Equal(t, map[string]int{"date": 0, "description": 1, "amount": 2, "reference": 3}, w.Mapping())
	require.Empty(t, w.MissingRequired())

	header, ok := w.MappedHeader("amount")
	require.True(t, ok)
	require.Equal(t, "Amt", header)

	resp, err := w.Process(context.Background())
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "imp-7", resp.ImportID)

	require.Equal(t, "/tmp/preview-42.csv", captured.PreviewURL)
	require.Equal(t, "ds-1", captured.DataSourceID)
	require.Equal(t, "02/01/2006", captured.DateFormat)
	require.True(t, captured.CreateImportRecord)
	require.Equal(t, "preview-42.csv", captured.Filename)
	require.NotNil(t, captured.SchemaDefinition)
	require.Equal(t, []string{"date", "description", "amount", "reference"}, captured.SchemaDefinition.RequiredFields)
}

func TestUploadFetchesPreviewDataWhenNotInlined(t *testing.T) {
	t.Parallel()

	srv, _ := previewServer(t, nil, false)
	w := New(api.New(srv.URL, time.Second, nil), "")
	require.NoError(t, w.SelectSource(anzSource()))
	require.NoError(t, w.Next())

	require.NoError(t, w.Upload(context.Background(), "jan.csv", 10, strings.NewReader(csvBody)))
	require.Len(t, w.Preview(), 2)
	require.Equal(t, []string{"Txn Date", "Desc", "Amt", "Ref"}, w.Columns())
}

func TestMappingGateListsExactMissingFields(t *testing.T) {
	t.Parallel()

	srv, _ := previewServer(t, map[string]int{"date": 0, "amount": 2}, true)
	w := New(api.New(srv.URL, time.Second, nil), "")

	src := anzSource()
	src.SchemaDefinition.DefaultMappings = nil // only the server suggestions apply
	require.NoError(t, w.SelectSource(src))
	require.NoError(t, w.Next())
	require.NoError(t, w.Upload(context.Background(), "jan.csv", 10, strings.NewReader(csvBody)))

	require.Equal(t, StepMap, w.Step())
	require.Equal(t, []string{"description", "reference"}, w.MissingRequired())

	err := w.Next()
	require.Error(t, err)
	require.Contains(t, err.Error(), "description, reference")
	require.Equal(t, StepMap, w.Step())

	require.NoError(t, w.SetMapping("description", 1))
	require.NoError(t, w.SetMapping("reference", 3))
	require.NoError(t, w.Next())
	require.Equal(t, StepConfirm, w.Step())
}

func TestGuards(t *testing.T) {
	t.Parallel()

	w := New(nil, "")

	// no source selected
	require.Error(t, w.Next())

	require.NoError(t, w.SelectSource(registry.DataSource{ID: "ds-2", Name: "plain"}))
	require.NoError(t, w.Next())

	// no file uploaded yet
	require.Error(t, w.Next())

	// source cannot change mid-flight
	require.Error(t, w.SelectSource(registry.DataSource{ID: "ds-3"}))

	// back is never guarded
	w.Back()
	require.Equal(t, StepSelectSource, w.Step())
	w.Back()
	require.Equal(t, StepSelectSource, w.Step())
}

func TestDefaultFieldsWithoutSchema(t *testing.T) {
	t.Parallel()

	w := New(nil, "")
	require.NoError(t, w.SelectSource(registry.DataSource{ID: "ds-2"}))
	require.Equal(t, DefaultRequiredFields, w.RequiredFields())
	require.Equal(t, DefaultOptionalFields, w.OptionalFields())
	require.Equal(t, "2006-01-02", w.DateFormat())
}

func TestUploadRejectsNonCSV(t *testing.T) {
	t.Parallel()

	w := New(nil, "")
	require.NoError(t, w.SelectSource(anzSource()))
	require.NoError(t, w.Next())

	err := w.Upload(context.Background(), "jan.xlsx", 10, strings.NewReader("x"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "CSV")
}

func TestUploadFailureKeepsStep(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unsupported delimiter"}`, http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	w := New(api.New(srv.URL, time.Second, nil), "")
	require.NoError(t, w.SelectSource(anzSource()))
	require.NoError(t, w.Next())

	err := w.Upload(context.Background(), "jan.csv", 10, strings.NewReader(csvBody))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported delimiter")
	require.Equal(t, StepUpload, w.Step())
	require.Empty(t, w.PreviewURL())
}

func TestPreviewWithoutURLIsDataShapeError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"columns":["a","b"]}`))
	}))
	t.Cleanup(srv.Close)

	w := New(api.New(srv.URL, time.Second, nil), "")
	require.NoError(t, w.SelectSource(anzSource()))
	require.NoError(t, w.Next())

	err := w.Upload(context.Background(), "jan.csv", 10, strings.NewReader(csvBody))
	require.Error(t, err)
	require.Contains(t, err.Error(), "previewUrl")
}

func TestSimultaneousSubmissionsReachTheWireOnce(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	var once sync.Once
	entered := make(chan struct{})
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/uploads/preview", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"previewUrl":"/tmp/p.csv","columns":["Txn Date","Desc","Amt","Ref"],"preview":[["Txn Date","Desc","Amt","Ref"],["x","y","z","w"]]}`))
	})
	mux.HandleFunc("/api/v1/uploads/process", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		once.Do(func() { close(entered) })
		<-release
		_, _ = w.Write([]byte(`{"success":true,"message":"queued","importId":"imp-9"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	w := New(api.New(srv.URL, 5*time.Second, nil), "")
	require.NoError(t, w.SelectSource(anzSource()))
	require.NoError(t, w.Next())
	require.NoError(t, w.Upload(context.Background(), "jan.csv", 10, strings.NewReader(csvBody)))
	require.Equal(t, StepConfirm, w.Step())

	done := make(chan error, 1)
	go func() {
		_, err := w.Process(context.Background())
		done <- err
	}()

	<-entered
	require.True(t, w.Busy())
	// the render loop keeps reading while the request is on the wire
	require.Equal(t, StepConfirm, w.Step())
	require.Len(t, w.Mapping(), 4)

	// a second trigger while one is in flight must be refused without a
	// second request reaching the backend
	_, err := w.Process(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "in flight")
	require.EqualValues(t, 1, hits.Load())

	close(release)
	require.NoError(t, <-done)
	require.EqualValues(t, 1, hits.Load())
	require.False(t, w.Busy())
}

func TestProcessFailureStaysOnConfirm(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/uploads/preview", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"previewUrl":"/tmp/p.csv","columns":["Txn Date","Desc","Amt","Ref"],"preview":[["Txn Date","Desc","Amt","Ref"],["x","y","z","w"]]}`))
	})
	mux.HandleFunc("/api/v1/uploads/process", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"date parse failed at row 14"}`, http.StatusUnprocessableEntity)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	w := New(api.New(srv.URL, time.Second, nil), "")
	require.NoError(t, w.SelectSource(anzSource()))
	require.NoError(t, w.Next())
	require.NoError(t, w.Upload(context.Background(), "jan.csv", 10, strings.NewReader(csvBody)))
	require.Equal(t, StepConfirm, w.Step())

	_, err := w.Process(context.Background())
	require.Error(t, err)
	// the raw backend diagnostic survives for the operator to read
	require.Contains(t, err.Error(), "date parse failed at row 14")
	// no automatic retry: state is intact and a human decides what happens
	require.Equal(t, StepConfirm, w.Step())
	require.False(t, w.Busy())
	require.Equal(t, "/tmp/p.csv", w.PreviewURL())
}
