// Package matcher ranks spreadsheet rows against a free-text customer query.
//
// A Matcher serializes a bounded candidate set, hands it to a Ranker exactly
// once and maps the returned ids back to rows. Any ranker failure yields an
// empty result; callers fall back to the unranked rows.
package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/storefn/core"
	"github.com/hupe1980/storefn/logging"
	"github.com/hupe1980/storefn/metrics"
)

// Kind is the category of rows being ranked.
type Kind string

const (
	KindService Kind = "service"
	KindProduct Kind = "product"
)

// Defaults for Options.
const (
	DefaultMaxCandidates   = 50
	DefaultMaxFieldChars   = 240
	DefaultMaxPayloadBytes = 16 * 1024
	DefaultTimeout         = 15 * time.Second
)

// Candidate is the compact form of a row sent to a ranker.
type Candidate struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Ranker orders candidates by relevance to query and returns their ids, most
// relevant first. Irrelevant candidates may be omitted.
type Ranker interface {
	Rank(ctx context.Context, query string, kind Kind, candidates []Candidate) ([]string, error)
}

// RankerFunc adapts a function to the Ranker interface.
type RankerFunc func(ctx context.Context, query string, kind Kind, candidates []Candidate) ([]string, error)

// Rank calls f.
func (f RankerFunc) Rank(ctx context.Context, query string, kind Kind, candidates []Candidate) ([]string, error) {
	return f(ctx, query, kind, candidates)
}

// Options configures a Matcher.
type Options struct {
	MaxCandidates   int
	MaxFieldChars   int
	MaxPayloadBytes int
	Timeout         time.Duration
	// Provider labels metrics and logs. Defaults to the ranker's Provider()
	// when it has one.
	Provider string
	Logger   logging.Logger
	Metrics  *metrics.Metrics
}

// Matcher is safe for concurrent use.
type Matcher struct {
	ranker Ranker
	opts   Options
}

// New creates a Matcher around ranker.
func New(ranker Ranker, optFns ...func(o *Options)) *Matcher {
	opts := Options{
		MaxCandidates:   DefaultMaxCandidates,
		MaxFieldChars:   DefaultMaxFieldChars,
		MaxPayloadBytes: DefaultMaxPayloadBytes,
		Timeout:         DefaultTimeout,
	}
	if p, ok := ranker.(interface{ Provider() string }); ok {
		opts.Provider = p.Provider()
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Provider == "" {
		opts.Provider = "custom"
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Matcher{ranker: ranker, opts: opts}
}

// Match returns the rows relevant to query in ranked order. It returns an
// empty slice when the query is blank, there are no rows, or ranking fails.
func (m *Matcher) Match(ctx context.Context, query string, rows []core.Row, kind Kind) []core.Row {
	if m == nil || m.ranker == nil {
		return []core.Row{}
	}
	query = strings.TrimSpace(query)
	if query == "" || len(rows) == 0 {
		return []core.Row{}
	}

	candidates := m.Candidates(rows)
	start := time.Now()
	ids, err := m.rank(ctx, query, kind, candidates)
	m.opts.Metrics.ObserveRank(m.opts.Provider, err)
	if err != nil {
		m.opts.Logger.Warn("matcher.rank.failed",
			"provider", m.opts.Provider,
			"kind", string(kind),
			"candidates", len(candidates),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err.Error(),
		)
		return []core.Row{}
	}

	out := make([]core.Row, 0, len(ids))
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		idx, err := strconv.Atoi(strings.TrimSpace(id))
		if err != nil || idx < 0 || idx >= len(candidates) {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, rows[idx])
	}

	m.opts.Logger.Debug("matcher.rank.done",
		"provider", m.opts.Provider,
		"kind", string(kind),
		"candidates", len(candidates),
		"ranked", len(out),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out
}

// Candidates builds the bounded candidate list for rows. Candidate ids are
// row indexes, so a prefix of rows is always used.
func (m *Matcher) Candidates(rows []core.Row) []Candidate {
	limit := len(rows)
	if m.opts.MaxCandidates > 0 && limit > m.opts.MaxCandidates {
		limit = m.opts.MaxCandidates
	}

	out := make([]Candidate, 0, limit)
	size := 2 // []
	for i := 0; i < limit; i++ {
		c := Candidate{ID: strconv.Itoa(i), Text: truncate(RowText(rows[i]), m.opts.MaxFieldChars)}
		b, err := json.Marshal(c)
		if err != nil {
			continue
		}
		n := len(b)
		if len(out) > 0 {
			n++ // comma
		}
		if m.opts.MaxPayloadBytes > 0 && size+n > m.opts.MaxPayloadBytes {
			break
		}
		size += n
		out = append(out, c)
	}
	return out
}

func (m *Matcher) rank(ctx context.Context, query string, kind Kind, candidates []Candidate) ([]string, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates fit the payload limit")
	}
	if m.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.Timeout)
		defer cancel()
	}

	type result struct {
		ids []string
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("ranker panic: %v", r)}
			}
		}()
		ids, err := m.ranker.Rank(ctx, query, kind, candidates)
		done <- result{ids: ids, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.ids, r.err
	}
}

// RowText renders a row as "col: value; col: value" with columns in sorted
// order and empty values skipped.
func RowText(row core.Row) string {
	parts := make([]string, 0, len(row))
	for _, k := range row.Keys() {
		v := row.String(k)
		if strings.TrimSpace(v) == "" {
			continue
		}
		parts = append(parts, k+": "+v)
	}
	return strings.Join(parts, "; ")
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
