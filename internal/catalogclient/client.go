package catalogclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/greenhouse-catalog/internal/catalog"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/config"
)

// DefaultTimeout bounds one request when Config.Timeout is not set.
const DefaultTimeout = 5 * time.Second

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 4 << 20

// Config configures a Client.
type Config struct {
	// BaseURL is the catalog root, e.g. "http://127.0.0.1:8080".
	BaseURL string
	// Timeout bounds each request including reading the body.
	Timeout time.Duration
	// HTTP overrides the underlying client. Its Timeout is left untouched.
	HTTP *http.Client
}

// Client calls the catalog registry over HTTP.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// Response is a catalog answer that reached the client.
type Response struct {
	StatusCode int
	Body       []byte
}

// Envelope is the status body the catalog returns for writes and failures.
type Envelope struct {
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

// New creates a client for the catalog at cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("catalogclient: base url is required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("catalogclient: invalid base url %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    base,
		timeout:    timeout,
		httpClient: httpClient,
	}, nil
}

// FromConfig creates a client from the peer section of the configuration.
func FromConfig(cfg config.PeerConfig) (*Client, error) {
	return New(Config{
		BaseURL: cfg.CatalogURL,
		Timeout: config.Seconds(cfg.RequestTimeout),
	})
}

// BaseURL returns the catalog root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// AllocateID asks the catalog for a fresh identifier in the namespace of col.
func (c *Client) AllocateID(ctx context.Context, col catalog.Collection) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, "/new_"+col.Item()+"_id", nil)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: allocate %s id: %d", ErrUnexpectedStatus, col.Item(), resp.StatusCode)
	}

	var out struct {
		ID *int64 `json:"id"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil || out.ID == nil {
		return 0, fmt.Errorf("%w: allocate %s id: %q", ErrDecode, col.Item(), resp.Body)
	}
	return *out.ID, nil
}

// Create submits doc as a new record of col. 201 means created, 400 means
// rejected (duplicate id or schema).
func (c *Client) Create(ctx context.Context, col catalog.Collection, doc catalog.Document) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/"+col.Item(), doc)
}

// Update submits doc as a refresh of an existing record of col. 200 means
// updated, 400 means rejected (unknown id or schema).
func (c *Client) Update(ctx context.Context, col catalog.Collection, doc catalog.Document) (*Response, error) {
	return c.send(ctx, http.MethodPut, "/"+col.Item(), doc)
}

// WriteSingleton sets (ModeCreate, POST) or refreshes (ModeUpdate, PUT) a slot.
func (c *Client) WriteSingleton(ctx context.Context, slot catalog.Slot, doc catalog.Document, mode catalog.Mode) (*Response, error) {
	method := http.MethodPut
	if mode == catalog.ModeCreate {
		method = http.MethodPost
	}
	return c.send(ctx, method, "/"+string(slot), doc)
}

// Get looks up one record of col by a searchable field. 200 carries the
// record, 404 means no match.
func (c *Client) Get(ctx context.Context, col catalog.Collection, field catalog.Field, value string) (*Response, error) {
	q := url.Values{}
	q.Set(string(field), value)
	return c.do(ctx, http.MethodGet, "/"+col.Item()+"?"+q.Encode(), nil)
}

// List returns every record of col.
func (c *Client) List(ctx context.Context, col catalog.Collection) ([]catalog.Record, error) {
	resp, err := c.do(ctx, http.MethodGet, "/"+string(col), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: list %s: %d", ErrUnexpectedStatus, col, resp.StatusCode)
	}

	var recs []catalog.Record
	if err := json.Unmarshal(resp.Body, &recs); err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrDecode, col, err)
	}
	return recs, nil
}

// ReadSingleton returns the content of slot, which may be empty.
func (c *Client) ReadSingleton(ctx context.Context, slot catalog.Slot) (catalog.Singleton, error) {
	resp, err := c.do(ctx, http.MethodGet, "/"+string(slot), nil)
	if err != nil {
		return catalog.Singleton{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return catalog.Singleton{}, fmt.Errorf("%w: read %s: %d", ErrUnexpectedStatus, slot, resp.StatusCode)
	}

	var sl catalog.Singleton
	if err := json.Unmarshal(resp.Body, &sl); err != nil {
		return catalog.Singleton{}, fmt.Errorf("%w: read %s: %w", ErrDecode, slot, err)
	}
	return sl, nil
}

// HealthCheck verifies the catalog answers on /health.
func (c *Client) HealthCheck(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return fmt.Errorf("catalog health check: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog health check: %w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}

// Record decodes a 200 response body as a record.
func (r *Response) Record() (catalog.Record, error) {
	var rec catalog.Record
	if err := json.Unmarshal(r.Body, &rec); err != nil {
		return catalog.Record{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return rec, nil
}

// Envelope decodes a write or failure response body.
func (r *Response) Envelope() (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(r.Body, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return env, nil
}

func (c *Client) send(ctx context.Context, method, path string, doc catalog.Document) (*Response, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("catalogclient: encoding document: %w", err)
	}
	return c.do(ctx, method, path, body)
}

// do performs one bounded request and reads the whole body.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("catalogclient: building %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s %s: %w", ErrTransport, method, path, err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}
