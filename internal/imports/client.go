package imports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jask/reconsole/internal/api"
)

// Status is the backend-owned lifecycle state of an import.
type Status string

const (
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
)

// Record is one completed or in-flight file ingestion.
type Record struct {
	ID           string    `json:"id"`
	DataSourceID string    `json:"dataSourceId"`
	FileName     string    `json:"fileName"`
	FileSize     int64     `json:"fileSize"`
	Status       Status    `json:"status"`
	RowCount     int       `json:"rowCount"`
	SuccessCount int       `json:"successCount"`
	ErrorCount   int       `json:"errorCount"`
	ImportedBy   string    `json:"importedBy"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Deletable reports whether the record may be deleted. Imports still being
// processed are protected client-side as well as server-side.
func (r Record) Deletable() bool { return r.Status != StatusProcessing }

// RawTransaction is one ingested row, stored verbatim with ingestion
// metadata. Read-only from this system's perspective.
type RawTransaction struct {
	ID           string          `json:"id"`
	ImportID     string          `json:"importId"`
	DataSourceID string          `json:"dataSourceId"`
	RowNumber    int             `json:"rowNumber"`
	Data         json.RawMessage `json:"data"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Client provides read-only browsing over imports and their rows.
type Client struct {
	api *api.Client
}

func NewClient(c *api.Client) *Client { return &Client{api: c} }

// ListByDataSource returns one page of imports for a data source.
func (c *Client) ListByDataSource(ctx context.Context, dataSourceID string, limit, offset int) (api.Page[Record], error) {
	var out api.Page[Record]
	path := "/api/v1/datasources/" + dataSourceID + "/imports" + api.PageQuery("", limit, offset)
	if err := c.api.GetJSON(ctx, path, &out); err != nil {
		return api.Page[Record]{}, fmt.Errorf("list imports for %s: %w", dataSourceID, err)
	}
	return out, nil
}

// Get fetches one import record.
func (c *Client) Get(ctx context.Context, id string) (Record, error) {
	var out Record
	if err := c.api.GetJSON(ctx, "/api/v1/imports/"+id, &out); err != nil {
		return Record{}, fmt.Errorf("get import %s: %w", id, err)
	}
	return out, nil
}

// Delete removes an import record. Rejected locally while the import is
// still processing.
func (c *Client) Delete(ctx context.Context, rec Record) error {
	if !rec.Deletable() {
		return fmt.Errorf("import %s is still processing and cannot be deleted", rec.ID)
	}
	if err := c.api.Delete(ctx, "/api/v1/imports/"+rec.ID); err != nil {
		return fmt.Errorf("delete import %s: %w", rec.ID, err)
	}
	return nil
}

// RawTransactions returns one page of ingested rows for an import.
func (c *Client) RawTransactions(ctx context.Context, importID string, limit, offset int) (api.Page[RawTransaction], error) {
	var out api.Page[RawTransaction]
	path := "/api/v1/imports/" + importID + "/raw-transactions" + api.PageQuery("", limit, offset)
	if err := c.api.GetJSON(ctx, path, &out); err != nil {
		return api.Page[RawTransaction]{}, fmt.Errorf("list raw transactions for %s: %w", importID, err)
	}
	return out, nil
}

// RawTransaction fetches a single ingested row.
func (c *Client) RawTransaction(ctx context.Context, id string) (RawTransaction, error) {
	var out RawTransaction
	if err := c.api.GetJSON(ctx, "/api/v1/raw-transactions/"+id, &out); err != nil {
		return RawTransaction{}, fmt.Errorf("get raw transaction %s: %w", id, err)
	}
	return out, nil
}
