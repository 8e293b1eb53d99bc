// Package sheets is the data access adapter for store spreadsheets. All
// reads and appends go through a single remote endpoint that fronts the
// spreadsheet service; there is no retry and no caching at this layer.
package sheets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/hupe1980/storefn/core"
	"github.com/hupe1980/storefn/logging"
	"github.com/hupe1980/storefn/metrics"
)

// Operation names sent to the spreadsheet service.
const (
	OpRead   = "read"
	OpAppend = "append"
)

// DefaultTimeout bounds a single spreadsheet call.
const DefaultTimeout = 10 * time.Second

// Store reads and appends rows of a store's spreadsheet tabs.
type Store interface {
	Read(ctx context.Context, storeID, tab string) ([]core.Row, error)
	Append(ctx context.Context, storeID, tab string, row core.Row) error
}

type credentialKey struct{}

// WithCredential attaches the actor token used to authorize spreadsheet calls.
func WithCredential(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, credentialKey{}, token)
}

// CredentialFrom returns the actor token carried by ctx, if any.
func CredentialFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(credentialKey{}).(string)
	return token, ok && token != ""
}

// Config configures the HTTP client.
type Config struct {
	// URL is the spreadsheet service endpoint every operation is POSTed to.
	URL string
	// APIKey is the service key. It is always sent as the apikey header and
	// doubles as the bearer credential when no actor token is on the context.
	APIKey string
	// Timeout per call. Defaults to DefaultTimeout.
	Timeout time.Duration
	// HTTPClient overrides http.DefaultClient.
	HTTPClient *http.Client
	Logger     logging.Logger
	Metrics    *metrics.Metrics
}

// Client is the HTTP implementation of Store. It is safe for concurrent use.
type Client struct {
	url     string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	logger  logging.Logger
	metrics *metrics.Metrics
}

var _ Store = (*Client)(nil)

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("sheets: url is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sheets: api key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		url:     strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		timeout: timeout,
		http:    hc,
		logger:  logging.OrNoOp(cfg.Logger),
		metrics: cfg.Metrics,
	}, nil
}

type request struct {
	Operation string
	StoreID   string
	TabName   string
	Data      core.Row
}

// encode renders the wire body: {"operation","storeId","tabName"} plus
// "data" for appends.
func (r request) encode() ([]byte, error) {
	body := []byte(`{}`)
	var err error
	for _, kv := range []struct {
		path  string
		value any
	}{
		{"operation", r.Operation},
		{"storeId", r.StoreID},
		{"tabName", r.TabName},
	} {
		if body, err = sjson.SetBytes(body, kv.path, kv.value); err != nil {
			return nil, err
		}
	}
	if r.Data != nil {
		if body, err = sjson.SetBytes(body, "data", map[string]any(r.Data)); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// Read returns all rows of tab. A response without data yields an empty slice.
func (c *Client) Read(ctx context.Context, storeID, tab string) ([]core.Row, error) {
	body, err := c.do(ctx, request{Operation: OpRead, StoreID: storeID, TabName: tab})
	if err != nil {
		return nil, err
	}

	data := gjson.GetBytes(body, "data")
	if !data.Exists() || data.Type == gjson.Null {
		return []core.Row{}, nil
	}
	if !data.IsArray() {
		return nil, &core.TransportError{Op: OpRead, Tab: tab, Message: "unexpected response: data is not an array"}
	}

	rows := make([]core.Row, 0, len(data.Array()))
	for _, item := range data.Array() {
		obj, ok := item.Value().(map[string]any)
		if !ok {
			continue
		}
		rows = append(rows, core.Row(obj))
	}
	return rows, nil
}

// Append writes row as a new line at the end of tab.
func (c *Client) Append(ctx context.Context, storeID, tab string, row core.Row) error {
	if row == nil {
		row = core.Row{}
	}
	_, err := c.do(ctx, request{Operation: OpAppend, StoreID: storeID, TabName: tab, Data: row})
	return err
}

func (c *Client) do(ctx context.Context, r request) (body []byte, err error) {
	start := time.Now()
	defer func() {
		d := time.Since(start)
		c.metrics.ObserveStoreCall(r.Operation, err, d)
		if err != nil {
			c.logger.Warn("sheets."+r.Operation+".failed",
				"store_id", r.StoreID,
				"tab", r.TabName,
				"duration_ms", d.Milliseconds(),
				"error", err.Error(),
			)
			return
		}
		c.logger.Debug("sheets."+r.Operation+".done",
			"store_id", r.StoreID,
			"tab", r.TabName,
			"duration_ms", d.Milliseconds(),
		)
	}()

	payload, err := r.encode()
	if err != nil {
		return nil, fmt.Errorf("sheets: encode %s request: %w", r.Operation, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("sheets: build request: %w", err)
	}
	c.setHeaders(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &core.TransportError{Op: r.Operation, Tab: r.TabName, Err: unwrapURLError(err)}
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, &core.TransportError{Op: r.Operation, Tab: r.TabName, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &core.TransportError{
			Op:      r.Operation,
			Tab:     r.TabName,
			Status:  resp.StatusCode,
			Message: errorMessage(body, resp.Status),
		}
	}
	return body, nil
}

func (c *Client) setHeaders(ctx context.Context, req *http.Request) {
	credential := c.apiKey
	if token, ok := CredentialFrom(ctx); ok {
		credential = token
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("apikey", c.apiKey)
}

func errorMessage(body []byte, status string) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "error", "message"} {
			if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	return status
}

// unwrapURLError strips the *url.Error wrapper so deadline errors match
// context.DeadlineExceeded.
func unwrapURLError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return err
}
