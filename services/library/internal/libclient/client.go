package libclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bibliotech/pkg/domain"
)

// Failure kinds surfaced to the UI layer. Everything else degrades to an
// empty or false result at this boundary.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrBackendUnreachable = errors.New("backend unreachable")
	ErrRegistrationFailed = errors.New("registration failed")
)

// Health is the result of a connectivity probe.
type Health struct {
	Reachable    bool
	StorageReady bool
}

// Client calls the record-store API over HTTP.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	healthTimeout time.Duration
}

// APIError represents a record-store error response.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Option adjusts client construction.
type Option func(*Client)

// WithHealthTimeout overrides the health probe timeout.
func WithHealthTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.healthTimeout = d
		}
	}
}

// WithHTTPClient substitutes the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient constructs a record-store client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		healthTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// CheckHealth probes the backend within a bounded timeout. Timeouts and
// transport failures report an offline backend instead of an error.
func (c *Client) CheckHealth(ctx context.Context) Health {
	probeCtx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	var resp healthResponse
	if err := c.doJSON(probeCtx, http.MethodGet, "/api/health", nil, &resp); err != nil {
		slog.Debug("health probe failed", "err", err)
		return Health{}
	}
	return Health{
		Reachable:    resp.Status == "ok",
		StorageReady: resp.Database == "connected" || resp.Database == "in-memory",
	}
}

// Login authenticates and returns the account. The password never appears
// on the returned value.
func (c *Client) Login(ctx context.Context, email, password string) (domain.User, error) {
	payload := map[string]string{"email": email, "password": password}
	var user domain.User
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", payload, &user); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return domain.User{}, fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.Message)
		}
		return domain.User{}, fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}
	return user, nil
}

type registerRequest struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new account. A duplicate email is reported as
// ErrEmailTaken, distinct from an unreachable backend.
func (c *Client) Register(ctx context.Context, candidate domain.User) (domain.User, error) {
	payload := registerRequest{
		ID:       candidate.ID,
		Username: candidate.Username,
		Email:    candidate.Email,
		Password: candidate.Password,
	}
	var user domain.User
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/register", payload, &user); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if apiErr.Status == http.StatusConflict || apiErr.Code == "AUTH_EMAIL_EXISTS" {
				return domain.User{}, ErrEmailTaken
			}
			return domain.User{}, fmt.Errorf("%w: %s", ErrRegistrationFailed, apiErr.Message)
		}
		return domain.User{}, fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}
	return user, nil
}

// ListBooks returns the full record set, or an empty slice when the
// backend is unreachable so callers can render an empty library.
func (c *Client) ListBooks(ctx context.Context) []domain.Book {
	var books []domain.Book
	if err := c.doJSON(ctx, http.MethodGet, "/api/books", nil, &books); err != nil {
		slog.Debug("list books failed", "err", err)
		return []domain.Book{}
	}
	if books == nil {
		return []domain.Book{}
	}
	return books
}

// CreateBook persists a new record. Not idempotent: call once per user
// action.
func (c *Client) CreateBook(ctx context.Context, book domain.Book) bool {
	err := c.doJSON(ctx, http.MethodPost, "/api/books", book, nil)
	if err != nil {
		slog.Debug("create book failed", "id", book.ID, "err", err)
	}
	return err == nil
}

// UpdateBook replaces the mutable fields of a record. The server keeps
// id, createdAt and ownerUserId from its stored row.
func (c *Client) UpdateBook(ctx context.Context, book domain.Book) bool {
	err := c.doJSON(ctx, http.MethodPut, "/api/books/"+book.ID, book, nil)
	if err != nil {
		slog.Debug("update book failed", "id", book.ID, "err", err)
	}
	return err == nil
}

// DeleteBook removes a record. The server treats unknown ids as success,
// so a repeated delete is safe.
func (c *Client) DeleteBook(ctx context.Context, id string) bool {
	err := c.doJSON(ctx, http.MethodDelete, "/api/books/"+id, nil, nil)
	if err != nil {
		slog.Debug("delete book failed", "id", id, "err", err)
	}
	return err == nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg, Code: strings.TrimSpace(errResp.Code)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
