package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/jask/reconsole/internal/api"
)

// RoleAdmin is the role that unlocks user administration. Admin capability
// derives from server-confirmed roles only; there is no client-side
// heuristic.
const RoleAdmin = "admin"

// User is an account visible to administrators.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// UserWithRoles pairs an account with its server-confirmed roles.
type UserWithRoles struct {
	User  User     `json:"user"`
	Roles []string `json:"roles"`
}

// RoleOp mutates one role on one user.
type RoleOp struct {
	Role      string `json:"role"`
	Operation string `json:"operation"` // "add" or "remove"
}

// CreateUserRequest creates an account with an initial role.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// Validate applies the client-side account rules. Failures here are rendered
// inline and never sent to the backend.
func (r CreateUserRequest) Validate() error {
	email := strings.TrimSpace(r.Email)
	if !strings.Contains(email, "@") || strings.ContainsAny(email, " \t") {
		return fmt.Errorf("invalid email address")
	}
	if len(r.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// Client administers users and roles.
type Client struct {
	api *api.Client
}

func NewClient(c *api.Client) *Client { return &Client{api: c} }

// Get fetches a user together with their roles.
func (c *Client) Get(ctx context.Context, id string) (UserWithRoles, error) {
	var out UserWithRoles
	if err := c.api.GetJSON(ctx, "/api/v1/users/"+id, &out); err != nil {
		return UserWithRoles{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return out, nil
}

// List returns all users. Admin only; the backend enforces it.
func (c *Client) List(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.api.GetJSON(ctx, "/api/v1/users", &out); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// Roles returns the server-confirmed roles for a user.
func (c *Client) Roles(ctx context.Context, id string) ([]string, error) {
	var out struct {
		Roles []string `json:"roles"`
	}
	if err := c.api.GetJSON(ctx, "/api/v1/users/"+id+"/roles", &out); err != nil {
		return nil, fmt.Errorf("get roles for %s: %w", id, err)
	}
	return out.Roles, nil
}

// UpdateRole adds or removes one role and returns the resulting role set.
func (c *Client) UpdateRole(ctx context.Context, id string, op RoleOp) ([]string, error) {
	if op.Operation != "add" && op.Operation != "remove" {
		return nil, fmt.Errorf("unknown role operation %q", op.Operation)
	}
	var out struct {
		Roles []string `json:"roles"`
	}
	if err := c.api.PutJSON(ctx, "/api/v1/users/"+id+"/roles", op, &out); err != nil {
		return nil, fmt.Errorf("update roles for %s: %w", id, err)
	}
	return out.Roles, nil
}

// Create registers a new account with an initial role.
func (c *Client) Create(ctx context.Context, req CreateUserRequest) (UserWithRoles, error) {
	if err := req.Validate(); err != nil {
		return UserWithRoles{}, err
	}
	var out UserWithRoles
	if err := c.api.PostJSON(ctx, "/api/v1/users", req, &out); err != nil {
		return UserWithRoles{}, fmt.Errorf("create user: %w", err)
	}
	return out, nil
}

// IsAdmin reports whether the given user holds the admin role.
func IsAdmin(roles []string) bool {
	for _, r := range roles {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}
