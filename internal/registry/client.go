package registry

import (
	"context"
	"fmt"

	"github.com/jask/reconsole/internal/api"
)

const basePath = "/api/v1/datasources"

// Client performs CRUD over data-source definitions.
type Client struct {
	api *api.Client
}

func NewClient(c *api.Client) *Client { return &Client{api: c} }

// List returns all data sources.
func (c *Client) List(ctx context.Context) ([]DataSource, error) {
	var out []DataSource
	if err := c.api.GetJSON(ctx, basePath, &out); err != nil {
		return nil, fmt.Errorf("list data sources: %w", err)
	}
	return out, nil
}

// Search filters data sources server-side with pagination.
func (c *Client) Search(ctx context.Context, query string, limit, offset int) (api.Page[DataSource], error) {
	var out api.Page[DataSource]
	path := basePath + "/search" + api.PageQuery(query, limit, offset)
	if err := c.api.GetJSON(ctx, path, &out); err != nil {
		return api.Page[DataSource]{}, fmt.Errorf("search data sources: %w", err)
	}
	return out, nil
}

// Get fetches one data source by id.
func (c *Client) Get(ctx context.Context, id string) (DataSource, error) {
	var out DataSource
	if err := c.api.GetJSON(ctx, basePath+"/"+id, &out); err != nil {
		return DataSource{}, fmt.Errorf("get data source %s: %w", id, err)
	}
	return out, nil
}

// Create registers a new data source. The schema is validated locally first.
func (c *Client) Create(ctx context.Context, req CreateRequest) (DataSource, error) {
	if err := ValidateSchema(req.SchemaDefinition); err != nil {
		return DataSource{}, fmt.Errorf("invalid schema: %w", err)
	}
	var out DataSource
	if err := c.api.PostJSON(ctx, basePath, req, &out); err != nil {
		return DataSource{}, fmt.Errorf("create data source: %w", err)
	}
	return out, nil
}

// Update replaces a data source definition.
func (c *Client) Update(ctx context.Context, id string, req CreateRequest) (DataSource, error) {
	if err := ValidateSchema(req.SchemaDefinition); err != nil {
		return DataSource{}, fmt.Errorf("invalid schema: %w", err)
	}
	var out DataSource
	if err := c.api.PutJSON(ctx, basePath+"/"+id, req, &out); err != nil {
		return DataSource{}, fmt.Errorf("update data source %s: %w", id, err)
	}
	return out, nil
}

// Delete removes a data source. Destructive; callers confirm first.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.api.Delete(ctx, basePath+"/"+id); err != nil {
		return fmt.Errorf("delete data source %s: %w", id, err)
	}
	return nil
}
