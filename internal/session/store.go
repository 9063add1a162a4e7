package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jask/reconsole/internal/api"
	"github.com/jask/reconsole/internal/credstore"
)

// refreshThreshold: when the credential expires within this window the
// watcher attempts a refresh instead of waiting for hard expiry.
const refreshThreshold = 5 * time.Minute

const watchInterval = time.Minute

// User is the authenticated identity.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	AuthProvider string `json:"authProvider"`
}

type authResponse struct {
	Token     string `json:"token"`
	User      User   `json:"user"`
	ExpiresIn int64  `json:"expires_in"`
}

type tokenInfo struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// Store owns the process-wide session state: the persisted credential and
// the in-memory identity. All reads go through accessors; login, refresh and
// logout are the only writers.
type Store struct {
	api   *api.Client
	creds *credstore.Store

	mu        sync.Mutex
	user      *User
	token     string
	expiresAt time.Time
	route     string

	onExpired   func(returnTo string)
	watchCancel context.CancelFunc

	// now is swappable for tests.
	now func() time.Time
}

func NewStore(client *api.Client, creds *credstore.Store) *Store {
	return &Store{api: client, creds: creds, now: time.Now}
}

// SetClient wires the API client after construction. The store supplies the
// client's token source, so the two reference each other; the store is built
// first and the client attached here.
func (s *Store) SetClient(client *api.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.api = client
}

// Token implements api.TokenSource.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Authenticated reports whether a non-expired credential is held.
func (s *Store) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != "" && s.now().Before(s.expiresAt)
}

// CurrentUser returns the authenticated identity, if any.
func (s *Store) CurrentUser() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// OnExpired registers the teardown callback. It receives the route that was
// active when the session died so the operator can be returned there after
// re-authenticating.
func (s *Store) OnExpired(fn func(returnTo string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpired = fn
}

// SetRoute records the operator's current location.
func (s *Store) SetRoute(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.route = route
}

// Init restores a persisted credential, if any. The credential is validated
// twice: its embedded JWT expiry is decoded locally, and the backend's
// token-info endpoint is consulted. Either failing discards it.
func (s *Store) Init(ctx context.Context) error {
	cred, err := s.creds.Load()
	if errors.Is(err, credstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		// unreadable credential file: treat as logged out
		_ = s.creds.Delete()
		return nil
	}

	exp, err := decodeExpiry(cred.Token)
	if err != nil || !s.now().Before(exp) {
		_ = s.creds.Delete()
		return nil
	}

	s.adopt(cred)

	var info tokenInfo
	if err := s.api.GetJSON(ctx, "/api/v1/auth/token-info", &info); err != nil {
		s.teardown(false)
		return nil
	}
	s.startWatch()
	return nil
}

// Login authenticates and persists the credential.
func (s *Store) Login(ctx context.Context, email, password string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return User{}, fmt.Errorf("email and password are required")
	}
	return s.authenticate(ctx, "/api/v1/auth/login", email, password, "")
}

// Register creates an account and logs in. Email shape and password length
// are validated client-side; those failures never reach the transport.
func (s *Store) Register(ctx context.Context, email, password, name string) (User, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") || strings.ContainsAny(email, " \t") {
		return User{}, fmt.Errorf("invalid email address")
	}
	if len(password) < 8 {
		return User{}, fmt.Errorf("password must be at least 8 characters")
	}
	return s.authenticate(ctx, "/api/v1/auth/register", email, password, name)
}

func (s *Store) authenticate(ctx context.Context, path, email, password, name string) (User, error) {
	body := map[string]string{"email": email, "password": password}
	if name != "" {
		body["name"] = name
	}
	var resp authResponse
	if err := s.api.PostJSON(ctx, path, body, &resp); err != nil {
		return User{}, err
	}
	cred := credstore.Credential{
		Token:        resp.Token,
		ExpiresAt:    s.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		UserID:       resp.User.ID,
		Email:        resp.User.Email,
		Name:         resp.User.Name,
		AuthProvider: resp.User.AuthProvider,
	}
	if err := s.creds.Save(cred); err != nil {
		return User{}, fmt.Errorf("persist credential: %w", err)
	}
	s.adopt(cred)
	s.api.Rearm()
	s.startWatch()
	return resp.User, nil
}

// Refresh exchanges the current token for a fresh one via token-info.
func (s *Store) Refresh(ctx context.Context) error {
	var info tokenInfo
	if err := s.api.GetJSON(ctx, "/api/v1/auth/token-info", &info); err != nil {
		return err
	}
	s.mu.Lock()
	if info.Token != "" {
		s.token = info.Token
	}
	s.expiresAt = s.now().Add(time.Duration(info.ExpiresIn) * time.Second)
	cred := credstore.Credential{Token: s.token, ExpiresAt: s.expiresAt}
	if s.user != nil {
		cred.UserID = s.user.ID
		cred.Email = s.user.Email
		cred.Name = s.user.Name
		cred.AuthProvider = s.user.AuthProvider
	}
	s.mu.Unlock()
	if err := s.creds.Save(cred); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	return nil
}

// Logout tears the session down without invoking the expiry callback.
func (s *Store) Logout() {
	s.teardown(false)
}

// HandleUnauthorized is wired into the api client's 401 hook. The client
// deduplicates concurrent 401s, so this runs once per session generation.
func (s *Store) HandleUnauthorized() {
	s.teardown(true)
}

func (s *Store) adopt(cred credstore.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = cred.Token
	s.expiresAt = cred.ExpiresAt
	s.user = &User{ID: cred.UserID, Email: cred.Email, Name: cred.Name, AuthProvider: cred.AuthProvider}
}

func (s *Store) teardown(expired bool) {
	s.mu.Lock()
	cancel := s.watchCancel
	s.watchCancel = nil
	s.token = ""
	s.user = nil
	s.expiresAt = time.Time{}
	route := s.route
	fn := s.onExpired
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = s.creds.Delete()
	if expired && fn != nil {
		fn(route)
	}
}

// startWatch launches the recurring expiry check. Single-instance: a new
// watcher cancels any previous one.
func (s *Store) startWatch() {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	prev := s.watchCancel
	s.watchCancel = cancel
	s.mu.Unlock()
	if prev != nil {
		prev()
	}

	go func() {
		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.checkExpiry(ctx)
			}
		}
	}()
}

func (s *Store) checkExpiry(ctx context.Context) {
	s.mu.Lock()
	expiresAt := s.expiresAt
	token := s.token
	s.mu.Unlock()
	if token == "" {
		return
	}

	now := s.now()
	if !now.Before(expiresAt) {
		s.teardown(true)
		return
	}
	if expiresAt.Sub(now) <= refreshThreshold {
		rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := s.Refresh(rctx); err != nil {
			s.teardown(true)
		}
	}
}

// decodeExpiry extracts the exp claim from a JWT without verifying the
// signature; verification is the backend's job, this is a local staleness
// check only.
func decodeExpiry(token string) (time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("malformed token")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("decode claims: %w", err)
	}
	var claims struct {
		Exp float64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse claims: %w", err)
	}
	if claims.Exp == 0 {
		return time.Time{}, fmt.Errorf("missing exp claim")
	}
	return time.Unix(int64(claims.Exp), 0), nil
}
