// Package wizard drives the multi-step import flow: select a data source,
// upload a file for preview, map columns, confirm processing. It owns all
// flow state; the TUI renders it and the api client talks to the backend.
package wizard

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jask/reconsole/internal/api"
	"github.com/jask/reconsole/internal/registry"
)

// Step is the wizard's position. Transitions are linear going forward, each
// gated by a guard; backward navigation is unrestricted.
type Step int

const (
	StepSelectSource Step = iota
	StepUpload
	StepMap
	StepConfirm
)

func (s Step) String() string {
	switch s {
	case StepSelectSource:
		return "select source"
	case StepUpload:
		return "upload"
	case StepMap:
		return "map columns"
	case StepConfirm:
		return "confirm"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Standard transaction fields. Used when the selected data source declares
// no schema of its own.
var (
	DefaultRequiredFields = []string{"date", "description", "amount", "reference"}
	DefaultOptionalFields = []string{"postDate", "currency"}
)

const defaultDateFormat = "2006-01-02"

// PreviewResponse is the backend's answer to a preview upload.
type PreviewResponse struct {
	PreviewURL        string         `json:"previewUrl"`
	Columns           []string       `json:"columns"`
	Preview           [][]string     `json:"preview,omitempty"`
	SuggestedMappings map[string]int `json:"suggestedMappings,omitempty"`
}

// ProcessRequest asks the backend to durably ingest a previously previewed
// file. The schema snapshot travels with the request; it is not re-fetched
// server-side.
type ProcessRequest struct {
	PreviewURL         string                     `json:"previewUrl"`
	DataSourceID       string                     `json:"dataSourceId"`
	DateFormat         string                     `json:"dateFormat"`
	ColumnMappings     map[string]int             `json:"columnMappings"`
	CreateImportRecord bool                       `json:"createImportRecord"`
	Filename           string                     `json:"filename"`
	SchemaDefinition   *registry.SchemaDefinition `json:"schemaDefinition"`
}

// ProcessResponse reports the outcome of a process request.
type ProcessResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	ImportID string `json:"importId,omitempty"`
}

// Wizard is one import session. Upload and Process run on command
// goroutines while the render loop reads state, so every method takes the
// mutex; the busy check-and-set is atomic, which is what makes the
// duplicate-submission guard hold.
type Wizard struct {
	ID string

	api *api.Client

	mu         sync.Mutex
	step       Step
	source     *registry.DataSource
	fileName   string
	fileSize   int64
	dateFormat string
	previewURL string
	columns    []string
	preview    [][]string
	mapping    map[string]int
	busy       bool
}

// New starts a fresh wizard session. defaultFormat may be empty.
func New(client *api.Client, defaultFormat string) *Wizard {
	if defaultFormat == "" {
		defaultFormat = defaultDateFormat
	}
	return &Wizard{
		ID:         uuid.NewString(),
		api:        client,
		step:       StepSelectSource,
		dateFormat: defaultFormat,
		mapping:    make(map[string]int),
	}
}

// Step returns the current position.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Busy reports whether an upload or process call is in flight. Advance
// controls are disabled while busy to prevent duplicate submission.
func (w *Wizard) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// Source returns the selected data source, if any.
func (w *Wizard) Source() *registry.DataSource {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.source
}

// DateFormat returns the effective date format.
func (w *Wizard) DateFormat() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dateFormat
}

// SetDateFormat overrides the date format used for processing.
func (w *Wizard) SetDateFormat(f string) {
	if strings.TrimSpace(f) == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dateFormat = f
}

// Columns returns the detected header row.
func (w *Wizard) Columns() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.columns
}

// Preview returns the preview rows (header first, when present).
func (w *Wizard) Preview() [][]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.preview
}

// PreviewURL returns the backend's handle for the uploaded file.
func (w *Wizard) PreviewURL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.previewURL
}

// FileName returns the name of the chosen file.
func (w *Wizard) FileName() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fileName
}

// SelectSource chooses the data source for this session. Allowed only on
// the first step; changing the source later means starting over.
func (w *Wizard) SelectSource(ds registry.DataSource) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepSelectSource {
		return fmt.Errorf("cannot change data source at step %q", w.step)
	}
	w.source = &ds
	if s := ds.SchemaDefinition; s != nil && s.DateFormat != "" {
		w.dateFormat = s.DateFormat
	}
	return nil
}

// Next advances one step, enforcing the guard for the current position.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.step {
	case StepSelectSource:
		if w.source == nil || w.source.ID == "" {
			return fmt.Errorf("select a data source first")
		}
		w.step = StepUpload
	case StepUpload:
		if w.busy {
			return fmt.Errorf("upload still in flight")
		}
		if w.fileName == "" {
			return fmt.Errorf("choose a file first")
		}
		if w.previewURL == "" || len(w.preview) == 0 {
			return fmt.Errorf("upload the file for preview first")
		}
		w.step = StepMap
	case StepMap:
		if missing := w.missingRequiredLocked(); len(missing) > 0 {
			return fmt.Errorf("required mappings missing: %s", strings.Join(missing, ", "))
		}
		w.step = StepConfirm
	case StepConfirm:
		return fmt.Errorf("already at the final step")
	}
	return nil
}

// Back moves one step backward. Never guarded.
func (w *Wizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step > StepSelectSource {
		w.step--
	}
}

// Upload sends the chosen file to the preview endpoint and, on success,
// derives the initial column mapping and advances the wizard. All new state
// is staged in locals and committed under the lock in one piece, so the
// session stays exactly on the upload step when anything fails, with the
// raw diagnostic preserved in the returned error.
func (w *Wizard) Upload(ctx context.Context, filename string, size int64, file io.Reader) error {
	w.mu.Lock()
	if w.step != StepUpload {
		w.mu.Unlock()
		return fmt.Errorf("not at the upload step")
	}
	if w.source == nil {
		w.mu.Unlock()
		return fmt.Errorf("no data source selected")
	}
	if w.busy {
		w.mu.Unlock()
		return fmt.Errorf("an upload is already in flight")
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		w.mu.Unlock()
		return fmt.Errorf("only CSV files are supported")
	}
	source := w.source
	dateFormat := w.dateFormat
	w.busy = true
	w.mu.Unlock()

	fail := func(err error) error {
		w.mu.Lock()
		w.busy = false
		w.mu.Unlock()
		return err
	}

	var resp PreviewResponse
	fields := map[string]string{"dataSourceId": source.ID}
	err := w.api.UploadFile(ctx, "/api/v1/uploads/preview", "file", filename, file, fields, &resp)
	if err != nil {
		return fail(err)
	}
	if resp.PreviewURL == "" {
		return fail(fmt.Errorf("preview response missing previewUrl"))
	}

	preview := resp.Preview
	columns := resp.Columns
	if len(columns) == 0 && len(preview) > 0 {
		columns = preview[0]
	}

	if len(preview) == 0 {
		rows, err := w.fetchPreviewRows(ctx, resp.PreviewURL)
		if err != nil {
			return fail(err)
		}
		preview = rows
		if len(columns) == 0 && len(rows) > 0 {
			columns = rows[0]
		}
	}
	if len(preview) == 0 {
		return fail(fmt.Errorf("no rows could be parsed from %s", filename))
	}

	// server suggestions first, then the schema's declared defaults win
	mapping := make(map[string]int)
	for field, idx := range resp.SuggestedMappings {
		mapping[field] = idx
	}
	if s := source.SchemaDefinition; s != nil {
		for field, idx := range DeriveMapping(s.DefaultMappings, columns) {
			mapping[field] = idx
		}
		if s.DateFormat != "" {
			dateFormat = s.DateFormat
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.busy = false
	w.fileName = filename
	w.fileSize = size
	w.previewURL = resp.PreviewURL
	w.columns = columns
	w.preview = preview
	w.mapping = mapping
	w.dateFormat = dateFormat
	w.step = StepMap
	if len(w.missingRequiredLocked()) == 0 {
		// fully mapped by the schema: skip straight past the validation gate
		w.step = StepConfirm
	}
	return nil
}

func (w *Wizard) fetchPreviewRows(ctx context.Context, previewURL string) ([][]string, error) {
	var out struct {
		Data [][]string `json:"data"`
	}
	p := "/api/v1/uploads/preview-data?url=" + url.QueryEscape(previewURL)
	if err := w.api.GetJSON(ctx, p, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// RequiredFields returns the fields that must be mapped before confirming:
// the schema's declared required set, or the standard set when the source
// has no schema.
func (w *Wizard) RequiredFields() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.requiredFieldsLocked()
}

func (w *Wizard) requiredFieldsLocked() []string {
	if w.source != nil && w.source.SchemaDefinition != nil && len(w.source.SchemaDefinition.RequiredFields) > 0 {
		return w.source.SchemaDefinition.RequiredFields
	}
	return DefaultRequiredFields
}

// OptionalFields returns the fields that may be mapped but are not required.
func (w *Wizard) OptionalFields() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.source != nil && w.source.SchemaDefinition != nil && len(w.source.SchemaDefinition.Fields) > 0 {
		required := make(map[string]bool)
		for _, f := range w.requiredFieldsLocked() {
			required[f] = true
		}
		var optional []string
		for _, f := range w.source.SchemaDefinition.Fields {
			if !required[f.Name] {
				optional = append(optional, f.Name)
			}
		}
		return optional
	}
	return DefaultOptionalFields
}

// Mapping returns a copy of the current column mapping.
func (w *Wizard) Mapping() map[string]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mappingLocked()
}

func (w *Wizard) mappingLocked() map[string]int {
	out := make(map[string]int, len(w.mapping))
	for k, v := range w.mapping {
		out[k] = v
	}
	return out
}

// SetMapping assigns a column index to a field.
func (w *Wizard) SetMapping(field string, column int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if column < 0 || column >= len(w.columns) {
		return fmt.Errorf("column %d out of range (file has %d columns)", column, len(w.columns))
	}
	w.mapping[field] = column
	return nil
}

// ClearMapping removes a field's mapping.
func (w *Wizard) ClearMapping(field string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.mapping, field)
}

// MappedHeader re-derives the header label for a mapped field from the
// stored preview's header row.
func (w *Wizard) MappedHeader(field string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx, ok := w.mapping[field]
	if !ok || idx < 0 || idx >= len(w.columns) {
		return "", false
	}
	return w.columns[idx], true
}

// MissingRequired lists required fields with no resolved column index,
// sorted for stable error messages.
func (w *Wizard) MissingRequired() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.missingRequiredLocked()
}

func (w *Wizard) missingRequiredLocked() []string {
	var missing []string
	for _, f := range w.requiredFieldsLocked() {
		if _, ok := w.mapping[f]; !ok {
			missing = append(missing, f)
		}
	}
	sort.Strings(missing)
	return missing
}

// Hints proposes near-miss headers for still-unmapped required fields.
func (w *Wizard) Hints() []Hint {
	w.mu.Lock()
	defer w.mu.Unlock()
	wanted := make(map[string]string)
	for _, f := range w.requiredFieldsLocked() {
		wanted[f] = f
	}
	if s := w.sourceSchemaLocked(); s != nil {
		for field, custom := range s.DefaultMappings {
			wanted[field] = custom
		}
	}
	return SuggestHints(wanted, w.columns, w.mapping)
}

func (w *Wizard) sourceSchemaLocked() *registry.SchemaDefinition {
	if w.source == nil {
		return nil
	}
	return w.source.SchemaDefinition
}

// BuildProcessRequest assembles the confirmation payload from the current
// session state.
func (w *Wizard) BuildProcessRequest() (ProcessRequest, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buildProcessRequestLocked()
}

func (w *Wizard) buildProcessRequestLocked() (ProcessRequest, error) {
	if w.step != StepConfirm {
		return ProcessRequest{}, fmt.Errorf("not at the confirm step")
	}
	if missing := w.missingRequiredLocked(); len(missing) > 0 {
		return ProcessRequest{}, fmt.Errorf("required mappings missing: %s", strings.Join(missing, ", "))
	}
	filename := path.Base(w.previewURL)
	if filename == "." || filename == "/" || filename == "" {
		filename = w.fileName
	}
	return ProcessRequest{
		PreviewURL:         w.previewURL,
		DataSourceID:       w.source.ID,
		DateFormat:         w.dateFormat,
		ColumnMappings:     w.mappingLocked(),
		CreateImportRecord: true,
		Filename:           filename,
		SchemaDefinition:   w.sourceSchemaLocked(),
	}, nil
}

// Process submits the confirmation request. The request is not idempotent:
// the backend has no dedup key, so there is no automatic retry, and the
// busy flag is claimed atomically so that of two simultaneous submissions
// exactly one reaches the wire. On failure the wizard stays at the confirm
// step with all state intact and the raw diagnostic in the returned error;
// a human decides whether to re-trigger.
func (w *Wizard) Process(ctx context.Context) (ProcessResponse, error) {
	w.mu.Lock()
	if w.busy {
		w.mu.Unlock()
		return ProcessResponse{}, fmt.Errorf("a submission is already in flight")
	}
	req, err := w.buildProcessRequestLocked()
	if err != nil {
		w.mu.Unlock()
		return ProcessResponse{}, err
	}
	w.busy = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.busy = false
		w.mu.Unlock()
	}()

	var resp ProcessResponse
	if err := w.api.PostJSON(ctx, "/api/v1/uploads/process", req, &resp); err != nil {
		return ProcessResponse{}, err
	}
	return resp, nil
}
