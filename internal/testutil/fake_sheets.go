package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/hupe1980/storefn/core"
	"github.com/hupe1980/storefn/sheets/memory"
)

// FakeSheets is an httptest server speaking the spreadsheet service protocol,
// backed by an in-memory store.
type FakeSheets struct {
	*httptest.Server
	Store *memory.Store

	mu      sync.Mutex
	status  map[string]int
	headers []http.Header
}

// NewFakeSheets starts a fake spreadsheet service closed on test cleanup.
func NewFakeSheets(t *testing.T) *FakeSheets {
	t.Helper()
	f := &FakeSheets{Store: memory.New(), status: map[string]int{}}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

// FailTab makes every call on tab answer with status.
func (f *FakeSheets) FailTab(tab string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[tab] = status
}

// Headers returns the request headers received so far.
func (f *FakeSheets) Headers() []http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]http.Header(nil), f.headers...)
}

type fakeRequest struct {
	Operation string   `json:"operation"`
	StoreID   string   `json:"storeId"`
	TabName   string   `json:"tabName"`
	Data      core.Row `json:"data"`
}

func (f *FakeSheets) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.headers = append(f.headers, r.Header.Clone())
	f.mu.Unlock()

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	var req fakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	f.mu.Lock()
	status := f.status[req.TabName]
	f.mu.Unlock()
	if status != 0 {
		writeJSON(w, status, map[string]any{"error": "tab unavailable"})
		return
	}

	switch req.Operation {
	case "read":
		rows, err := f.Store.Read(r.Context(), req.StoreID, req.TabName)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": rows})
	case "append":
		if err := f.Store.Append(r.Context(), req.StoreID, req.TabName, req.Data); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "unknown operation " + req.Operation})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
