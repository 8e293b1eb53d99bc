package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/storefn/model"
)

const rankInstructions = `You rank a small store's %ss for a customer's request.
You receive the request and a JSON array of candidates, each with an "id" and a "text".
Reply with ONLY a JSON array of the ids of the relevant candidates, most relevant first.
Leave out candidates that do not match the request. Reply [] when none match.`

// ModelRanker ranks candidates by prompting a language model.
type ModelRanker struct {
	model     model.Model
	maxTokens int64
}

var _ Ranker = (*ModelRanker)(nil)

// NewModelRanker wraps m.
func NewModelRanker(m model.Model) *ModelRanker {
	return &ModelRanker{model: m, maxTokens: 512}
}

// Provider returns the underlying model provider.
func (r *ModelRanker) Provider() string {
	return r.model.Info().Provider
}

// Rank implements Ranker.
func (r *ModelRanker) Rank(ctx context.Context, query string, kind Kind, candidates []Candidate) ([]string, error) {
	payload, err := json.Marshal(candidates)
	if err != nil {
		return nil, fmt.Errorf("encode candidates: %w", err)
	}

	req := model.UserPrompt(
		fmt.Sprintf(rankInstructions, kind),
		fmt.Sprintf("Request: %s\nCandidates: %s", query, payload),
	)
	req.MaxTokens = r.maxTokens

	resp, err := r.model.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("rank %ss: %w", kind, err)
	}
	return ParseIDs(resp.Text)
}

// ParseIDs extracts the JSON array of ids from a model reply. Surrounding
// prose, bracketed asides and code fences are tolerated; the array closing
// last in the reply wins. Numeric ids and {"id": ...} objects are accepted.
func ParseIDs(reply string) ([]string, error) {
	raw, ok := lastArray(reply)
	if !ok {
		return nil, fmt.Errorf("reply contains no id array")
	}

	ids := []string{}
	gjson.Parse(raw).ForEach(func(_, v gjson.Result) bool {
		switch v.Type {
		case gjson.String, gjson.Number:
			ids = append(ids, v.String())
		case gjson.JSON:
			if id := v.Get("id"); id.Exists() {
				ids = append(ids, id.String())
			}
		}
		return true
	})
	return ids, nil
}

// lastArray returns the outermost valid JSON array that closes last in s.
func lastArray(s string) (string, bool) {
	var opens, closes []int
	for i, r := range s {
		switch r {
		case '[':
			opens = append(opens, i)
		case ']':
			closes = append(closes, i)
		}
	}
	for c := len(closes) - 1; c >= 0; c-- {
		end := closes[c]
		for _, start := range opens {
			if start >= end {
				break
			}
			candidate := s[start : end+1]
			if gjson.Valid(candidate) && gjson.Parse(candidate).IsArray() {
				return candidate, true
			}
		}
	}
	return "", false
}

// KeywordRanker is an offline ranker scoring candidates by how many query
// terms appear in their text.
type KeywordRanker struct{}

var _ Ranker = KeywordRanker{}

// Provider implements the provider label lookup.
func (KeywordRanker) Provider() string { return "keyword" }

// Rank implements Ranker. Candidates without any matching term are omitted;
// ties keep candidate order.
func (KeywordRanker) Rank(ctx context.Context, query string, _ Kind, candidates []Candidate) ([]string, error) {
	terms := Terms(query)
	if len(terms) == 0 {
		return []string{}, nil
	}

	type scored struct {
		id    string
		score int
	}
	hits := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := strings.ToLower(c.Text)
		score := 0
		for _, t := range terms {
			if strings.Contains(text, t) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{id: c.ID, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	return ids, nil
}

// Terms splits a query into lowercase search terms. Short words are dropped
// and a trailing plural "s" is trimmed so "drinks" matches "drink".
func Terms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 3 {
			continue
		}
		if len(f) > 3 && strings.HasSuffix(f, "s") && !strings.HasSuffix(f, "ss") {
			f = strings.TrimSuffix(f, "s")
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
