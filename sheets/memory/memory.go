// Package memory provides an in-memory sheets.Store for tests, examples and
// the CLI's offline mode.
package memory

import (
	"context"
	"sync"

	"github.com/hupe1980/storefn/core"
	"github.com/hupe1980/storefn/sheets"
)

// Store is a volatile sheets.Store keyed by store id and tab name. It is safe
// for concurrent access. Rows are cloned on the way in and out so callers
// cannot mutate stored state.
type Store struct {
	mu       sync.RWMutex
	tabs     map[string]map[string][]core.Row
	failures map[string]map[string]error
	reads    int
	appends  int
}

var _ sheets.Store = (*Store)(nil)

// New constructs an empty Store.
func New() *Store {
	return &Store{
		tabs:     make(map[string]map[string][]core.Row),
		failures: make(map[string]map[string]error),
	}
}

// Seed replaces the rows of tab for storeID.
func (s *Store) Seed(storeID, tab string, rows ...core.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cloned := make([]core.Row, 0, len(rows))
	for _, r := range rows {
		cloned = append(cloned, r.Clone())
	}
	s.storeLocked(storeID)[tab] = cloned
}

// Fail makes every subsequent call on tab return err. A nil err clears the
// injected failure.
func (s *Store) Fail(storeID, tab string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.failures[storeID]
	if !ok {
		f = make(map[string]error)
		s.failures[storeID] = f
	}
	if err == nil {
		delete(f, tab)
		return
	}
	f[tab] = err
}

// Read returns a copy of the rows of tab. Unknown tabs read as empty.
func (s *Store) Read(ctx context.Context, storeID, tab string) ([]core.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, &core.TransportError{Op: sheets.OpRead, Tab: tab, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if err := s.failures[storeID][tab]; err != nil {
		return nil, err
	}
	rows := s.tabs[storeID][tab]
	out := make([]core.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Clone())
	}
	return out, nil
}

// Append adds a copy of row to the end of tab, creating the tab lazily.
func (s *Store) Append(ctx context.Context, storeID, tab string, row core.Row) error {
	if err := ctx.Err(); err != nil {
		return &core.TransportError{Op: sheets.OpAppend, Tab: tab, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends++
	if err := s.failures[storeID][tab]; err != nil {
		return err
	}
	st := s.storeLocked(storeID)
	st[tab] = append(st[tab], row.Clone())
	return nil
}

// Rows returns a copy of the rows currently held for tab.
func (s *Store) Rows(storeID, tab string) []core.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.tabs[storeID][tab]
	out := make([]core.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Clone())
	}
	return out
}

// Calls reports how many reads and appends were attempted.
func (s *Store) Calls() (reads, appends int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reads, s.appends
}

// storeLocked returns the tab map for storeID, allocating it when absent;
// caller must hold the write lock.
func (s *Store) storeLocked(storeID string) map[string][]core.Row {
	st, ok := s.tabs[storeID]
	if !ok {
		st = make(map[string][]core.Row)
		s.tabs[storeID] = st
	}
	return st
}
