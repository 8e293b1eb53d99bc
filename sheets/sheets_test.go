package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/storefn/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	body    map[string]any
	auth    string
	apikey  string
	method  string
	content string
}

func newServer(t *testing.T, status int, reply string, got *captured, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		if got != nil {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &got.body)
			got.auth = r.Header.Get("Authorization")
			got.apikey = r.Header.Get("apikey")
			got.method = r.Method
			got.content = r.Header.Get("Content-Type")
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Config{URL: url, APIKey: "service-key"})
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{APIKey: "k"})
	assert.Error(t, err)
	_, err = New(Config{URL: "http://x"})
	assert.Error(t, err)
}

func TestClient_Read(t *testing.T) {
	var got captured
	srv := newServer(t, http.StatusOK, `{"data":[{"Name":"Latte","Price":4.5},{"Name":"Tea"}]}`, &got, nil)
	c := newClient(t, srv.URL)

	rows, err := c.Read(WithCredential(context.Background(), "actor-token"), "store-1", "Product List")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Latte", rows[0]["Name"])
	assert.Equal(t, 4.5, rows[0]["Price"])

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "application/json", got.content)
	assert.Equal(t, "Bearer actor-token", got.auth)
	assert.Equal(t, "service-key", got.apikey)
	assert.Equal(t, map[string]any{"operation": "read", "storeId": "store-1", "tabName": "Product List"}, got.body)
}

func TestClient_ReadWithoutDataIsEmpty(t *testing.T) {
	for _, reply := range []string{`{}`, `{"data":null}`} {
		srv := newServer(t, http.StatusOK, reply, nil, nil)
		rows, err := newClient(t, srv.URL).Read(context.Background(), "s", "Hours")
		require.NoError(t, err)
		assert.NotNil(t, rows)
		assert.Empty(t, rows)
	}
}

func TestClient_ServiceKeyFallback(t *testing.T) {
	var got captured
	srv := newServer(t, http.StatusOK, `{"data":[]}`, &got, nil)
	_, err := newClient(t, srv.URL).Read(context.Background(), "s", "Hours")
	require.NoError(t, err)
	assert.Equal(t, "Bearer service-key", got.auth)
}

func TestClient_Append(t *testing.T) {
	var got captured
	var calls int32
	srv := newServer(t, http.StatusCreated, `{"ok":true}`, &got, &calls)

	err := newClient(t, srv.URL).Append(context.Background(), "s", "Leads", core.Row{"Name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls)
	assert.Equal(t, "append", got.body["operation"])
	assert.Equal(t, "Leads", got.body["tabName"])
	assert.Equal(t, map[string]any{"Name": "Ada"}, got.body["data"])
}

func TestClient_Non2xx(t *testing.T) {
	var calls int32
	srv := newServer(t, http.StatusBadGateway, `{"error":"sheet locked"}`, nil, &calls)

	_, err := newClient(t, srv.URL).Read(context.Background(), "s", "Hours")
	var te *core.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, OpRead, te.Op)
	assert.Equal(t, "Hours", te.Tab)
	assert.Equal(t, http.StatusBadGateway, te.Status)
	assert.Equal(t, "sheet locked", te.Message)
	assert.Equal(t, int32(1), calls, "no retry")
}

func TestClient_Non2xxWithoutJSON(t *testing.T) {
	srv := newServer(t, http.StatusInternalServerError, `oops`, nil, nil)
	err := newClient(t, srv.URL).Append(context.Background(), "s", "Leads", core.Row{})
	var te *core.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "500 Internal Server Error", te.Message)
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{URL: srv.URL, APIKey: "k", Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.Read(context.Background(), "s", "Hours")
	var te *core.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 0, te.Status)
	assert.True(t, te.Timeout())
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newClient(t, url).Read(context.Background(), "s", "Hours")
	var te *core.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 0, te.Status)
}
