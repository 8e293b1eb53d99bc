package matcher

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/storefn/core"
	"github.com/hupe1980/storefn/metrics"
	"github.com/hupe1980/storefn/model"
)

var menu = []core.Row{
	{"Name": "Espresso", "Category": "Drinks"},
	{"Name": "Croissant", "Category": "Bakery"},
	{"Name": "Iced Tea", "Category": "Drinks"},
}

func fixed(ids ...string) RankerFunc {
	return func(context.Context, string, Kind, []Candidate) ([]string, error) {
		return ids, nil
	}
}

func TestMatch_MapsIDsInRankOrder(t *testing.T) {
	m := New(fixed("2", "0"))
	got := m.Match(context.Background(), "cold drink", menu, KindProduct)
	require.Len(t, got, 2)
	assert.Equal(t, "Iced Tea", got[0]["Name"])
	assert.Equal(t, "Espresso", got[1]["Name"])
}

func TestMatch_DropsUnknownAndDuplicateIDs(t *testing.T) {
	m := New(fixed("1", "7", "x", "1", "-1", "0"))
	got := m.Match(context.Background(), "q", menu, KindProduct)
	require.Len(t, got, 2)
	assert.Equal(t, "Croissant", got[0]["Name"])
	assert.Equal(t, "Espresso", got[1]["Name"])
}

func TestMatch_FailureReturnsEmpty(t *testing.T) {
	reg := prometheus.NewRegistry()
	mt := metrics.New(reg)

	failing := RankerFunc(func(context.Context, string, Kind, []Candidate) ([]string, error) {
		return nil, errors.New("ranker unavailable")
	})
	got := New(failing, func(o *Options) { o.Metrics = mt }).Match(context.Background(), "tea", menu, KindProduct)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.RankCalls.WithLabelValues("custom", metrics.OutcomeFailure)))
}

func TestMatch_PanicReturnsEmpty(t *testing.T) {
	panicking := RankerFunc(func(context.Context, string, Kind, []Candidate) ([]string, error) {
		panic("boom")
	})
	assert.Empty(t, New(panicking).Match(context.Background(), "tea", menu, KindProduct))
}

func TestMatch_TimeoutReturnsEmpty(t *testing.T) {
	slow := RankerFunc(func(ctx context.Context, _ string, _ Kind, _ []Candidate) ([]string, error) {
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
		}
		return []string{"0"}, nil
	})
	m := New(slow, func(o *Options) { o.Timeout = 10 * time.Millisecond })
	assert.Empty(t, m.Match(context.Background(), "tea", menu, KindProduct))
}

func TestMatch_RankerCalledOnce(t *testing.T) {
	var calls int32
	r := RankerFunc(func(context.Context, string, Kind, []Candidate) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		return []string{"0"}, nil
	})
	New(r).Match(context.Background(), "tea", menu, KindService)
	assert.Equal(t, int32(1), calls)
}

func TestMatch_BlankQueryOrNoRows(t *testing.T) {
	var calls int32
	r := RankerFunc(func(context.Context, string, Kind, []Candidate) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		return []string{"0"}, nil
	})
	m := New(r)
	assert.Empty(t, m.Match(context.Background(), "  ", menu, KindProduct))
	assert.Empty(t, m.Match(context.Background(), "tea", nil, KindProduct))
	assert.Equal(t, int32(0), calls)

	var nilMatcher *Matcher
	assert.Empty(t, nilMatcher.Match(context.Background(), "tea", menu, KindProduct))
}

func TestCandidates_Bounds(t *testing.T) {
	rows := make([]core.Row, 80)
	for i := range rows {
		rows[i] = core.Row{"Name": strings.Repeat("x", 500)}
	}

	m := New(fixed())
	c := m.Candidates(rows)
	require.Len(t, c, 50)
	assert.Len(t, []rune(c[0].Text), DefaultMaxFieldChars)
	assert.Equal(t, "0", c[0].ID)
	assert.Equal(t, "49", c[49].ID)

	small := New(fixed(), func(o *Options) { o.MaxPayloadBytes = 1024 })
	c = small.Candidates(rows)
	assert.NotEmpty(t, c)
	assert.Less(t, len(c), 5)
}

func TestRowText(t *testing.T) {
	assert.Equal(t, "Category: Drinks; Name: Latte; Price: 4.5",
		RowText(core.Row{"Name": "Latte", "Price": 4.5, "Category": "Drinks", "Notes": ""}))
}

func TestModelRanker(t *testing.T) {
	mm := model.NewMockModel("ranker")
	mm.SetFallback("Sure! ```json\n[\"2\", 0]\n```")

	m := New(NewModelRanker(mm))
	got := m.Match(context.Background(), "something cold", menu, KindProduct)
	require.Len(t, got, 2)
	assert.Equal(t, "Iced Tea", got[0]["Name"])

	calls := mm.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Instructions, "products")
	assert.Contains(t, calls[0].Messages[0].Text, "something cold")
	assert.Contains(t, calls[0].Messages[0].Text, `"id":"1"`)
}

func TestModelRanker_ModelError(t *testing.T) {
	mm := model.NewMockModel("ranker")
	mm.SetError(errors.New("rate limited"))
	assert.Empty(t, New(NewModelRanker(mm)).Match(context.Background(), "tea", menu, KindProduct))
}

func TestParseIDs(t *testing.T) {
	ids, err := ParseIDs(`[{"id":"3"},"1",2]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "1", "2"}, ids)

	ids, err = ParseIDs("[]")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = ParseIDs("no idea")
	assert.Error(t, err)
	_, err = ParseIDs("[1, 2")
	assert.Error(t, err)
	_, err = ParseIDs("see [note] and [sic]")
	assert.Error(t, err)
}

func TestParseIDs_ToleratesBracketedProse(t *testing.T) {
	tests := []struct {
		reply string
		want  []string
	}{
		{`see [note]: ["1"]`, []string{"1"}},
		{"```json\n[\"4\", \"0\"]\n```", []string{"4", "0"}},
		{`[2, 0] is my answer [final]`, []string{"2", "0"}},
		{`candidates [a, b] -> [{"id":"1"},{"id":"0"}]`, []string{"1", "0"}},
	}
	for _, tt := range tests {
		ids, err := ParseIDs(tt.reply)
		require.NoError(t, err, tt.reply)
		assert.Equal(t, tt.want, ids, tt.reply)
	}
}

func TestKeywordRanker(t *testing.T) {
	m := New(KeywordRanker{})
	got := m.Match(context.Background(), "cold drinks and tea", menu, KindProduct)
	require.Len(t, got, 2)
	assert.Equal(t, "Iced Tea", got[0]["Name"], "two matching terms")
	assert.Equal(t, "Espresso", got[1]["Name"])
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"drink", "glass", "hair"}, Terms("Drinks, a GLASS? hair hair"))
}
