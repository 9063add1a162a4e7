package tenant

import (
	"context"
	"fmt"
	"io"

	"github.com/jask/reconsole/internal/api"
)

// Tenant carries the branding and settings for one tenant.
type Tenant struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	LogoURL        string         `json:"logoUrl,omitempty"`
	PrimaryColor   string         `json:"primaryColor,omitempty"`
	SecondaryColor string         `json:"secondaryColor,omitempty"`
	Domain         string         `json:"domain,omitempty"`
	Settings       map[string]any `json:"settings,omitempty"`
}

// Resolver determines the active tenant context: by configured domain first,
// falling back to the identity embedded in the session.
type Resolver struct {
	api *api.Client
	// Domain, when set, takes precedence over identity-based resolution.
	Domain string
}

func NewResolver(c *api.Client, domain string) *Resolver {
	return &Resolver{api: c, Domain: domain}
}

// Resolve returns the active tenant. Domain lookup failures fall through to
// the session-based lookup rather than failing resolution outright.
func (r *Resolver) Resolve(ctx context.Context) (Tenant, error) {
	if r.Domain != "" && r.Domain != "localhost" && r.Domain != "127.0.0.1" {
		var t Tenant
		if err := r.api.GetJSON(ctx, "/api/v1/tenants/domain/"+r.Domain, &t); err == nil {
			return t, nil
		}
	}
	var t Tenant
	if err := r.api.GetJSON(ctx, "/api/v1/tenants/current", &t); err != nil {
		return Tenant{}, fmt.Errorf("resolve tenant: %w", err)
	}
	return t, nil
}

// Get fetches a tenant by id.
func (r *Resolver) Get(ctx context.Context, id string) (Tenant, error) {
	var t Tenant
	if err := r.api.GetJSON(ctx, "/api/v1/tenants/"+id, &t); err != nil {
		return Tenant{}, fmt.Errorf("get tenant %s: %w", id, err)
	}
	return t, nil
}

// Update replaces mutable tenant settings.
func (r *Resolver) Update(ctx context.Context, id string, t Tenant) (Tenant, error) {
	var out Tenant
	if err := r.api.PutJSON(ctx, "/api/v1/tenants/"+id, t, &out); err != nil {
		return Tenant{}, fmt.Errorf("update tenant %s: %w", id, err)
	}
	return out, nil
}

// UploadLogo replaces the tenant's logo and returns its new URL.
func (r *Resolver) UploadLogo(ctx context.Context, id, filename string, logo io.Reader) (string, error) {
	var out struct {
		LogoURL string `json:"logoUrl"`
	}
	err := r.api.UploadFile(ctx, "/api/v1/tenants/"+id+"/logo", "logo", filename, logo, nil, &out)
	if err != nil {
		return "", fmt.Errorf("upload logo for tenant %s: %w", id, err)
	}
	return out.LogoURL, nil
}
