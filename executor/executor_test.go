package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/storefn/core"
	"github.com/hupe1980/storefn/matcher"
	"github.com/hupe1980/storefn/metrics"
	"github.com/hupe1980/storefn/registry"
	"github.com/hupe1980/storefn/sheets"
	"github.com/hupe1980/storefn/sheets/memory"
)

const storeID = "store-1"

var fixedNow = time.Date(2024, 11, 30, 9, 15, 0, 0, time.FixedZone("CET", 3600))

func newExecutor(t *testing.T, store sheets.Store, optFns ...func(o *Options)) *Executor {
	t.Helper()
	fns := append([]func(o *Options){func(o *Options) {
		o.Store = store
		o.Now = func() time.Time { return fixedNow }
	}}, optFns...)
	e, err := New(registry.Default(), fns...)
	require.NoError(t, err)
	return e
}

func fctxFor(schema core.DetectedSchema) *core.FunctionContext {
	return core.NewFunctionContext(storeID, "", core.StoreConfig{DetectedSchema: schema})
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(registry.Default())
	assert.Error(t, err)
}

func TestNew_DispatchMustMatchRegistry(t *testing.T) {
	reg := registry.MustNew("test", registry.FunctionDefinition{Name: "orphan"})
	_, err := New(reg, func(o *Options) { o.Store = memory.New() })
	require.Error(t, err)
	assert.Contains(t, err.Error(), `function "orphan" has no handler`)

	_, err = New(registry.Default(), func(o *Options) {
		o.Store = memory.New()
		o.Handlers = map[string]Handler{"unlisted": func(context.Context, map[string]any, *core.FunctionContext) (map[string]any, error) {
			return nil, nil
		}}
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `handler "unlisted" is not registered`)
}

func TestExecute_UnknownFunction(t *testing.T) {
	e := newExecutor(t, memory.New())
	res := e.Execute(context.Background(), "get_weather", nil, fctxFor(nil))
	assert.False(t, res.Success)
	assert.Equal(t, "unknown function: get_weather", res.Error)
	assert.Equal(t, core.KindUnknownFunction, res.Kind)

	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"unknown function: get_weather"}`, string(b))
}

func TestExecute_MissingRequiredParameterIsNamed(t *testing.T) {
	e := newExecutor(t, memory.New())
	res := e.Execute(context.Background(), registry.FuncCaptureLead, map[string]any{"email": "a@b.c"}, fctxFor(core.DetectedSchema{"Leads": {}}))
	assert.False(t, res.Success)
	assert.Equal(t, core.KindValidation, res.Kind)
	assert.Contains(t, res.Error, "name")
}

func TestExecute_PanicBecomesInternalError(t *testing.T) {
	reg := registry.MustNew("test", registry.FunctionDefinition{Name: "explode"})
	e, err := New(reg, func(o *Options) {
		o.Store = memory.New()
		o.Handlers = map[string]Handler{"explode": func(context.Context, map[string]any, *core.FunctionContext) (map[string]any, error) {
			panic("kaboom")
		}}
	})
	require.NoError(t, err)

	var res core.Result
	assert.NotPanics(t, func() { res = e.Execute(context.Background(), "explode", nil, nil) })
	assert.False(t, res.Success)
	assert.Equal(t, core.KindInternal, res.Kind)
	assert.Equal(t, "internal error while executing the function", res.Error)
}

func TestExecute_CarriesCredentialAndTimeout(t *testing.T) {
	reg := registry.MustNew("test", registry.FunctionDefinition{Name: "inspect_context"})
	e, err := New(reg, func(o *Options) {
		o.Store = memory.New()
		o.Timeout = time.Minute
		o.Handlers = map[string]Handler{"inspect_context": func(ctx context.Context, _ map[string]any, _ *core.FunctionContext) (map[string]any, error) {
			token, _ := sheets.CredentialFrom(ctx)
			_, hasDeadline := ctx.Deadline()
			return map[string]any{"token": token, "deadline": hasDeadline}, nil
		}}
	})
	require.NoError(t, err)

	res := e.Handle(context.Background(), Request{FunctionName: "inspect_context", StoreID: storeID, AuthToken: "actor"})
	require.True(t, res.Success)
	assert.Equal(t, "actor", res.Data["token"])
	assert.Equal(t, true, res.Data["deadline"])
}

func TestExecute_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	e := newExecutor(t, memory.New(), func(o *Options) { o.Metrics = m })

	e.Execute(context.Background(), "nope", nil, fctxFor(nil))
	e.Execute(context.Background(), registry.FuncGetStoreInfo, map[string]any{"scope": "hours"}, fctxFor(core.DetectedSchema{"Hours": {}}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FunctionCalls.WithLabelValues(UnknownFunctionLabel, core.KindUnknownFunction)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FunctionCalls.WithLabelValues(registry.FuncGetStoreInfo, metrics.OutcomeSuccess)))
}

func TestExecute_UnknownNamesShareOneSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	e := newExecutor(t, memory.New(), func(o *Options) { o.Metrics = m })

	for i := 0; i < 200; i++ {
		res := e.Execute(context.Background(), fmt.Sprintf("bogus_%d", i), nil, fctxFor(nil))
		require.False(t, res.Success)
		assert.Equal(t, fmt.Sprintf("unknown function: bogus_%d", i), res.Error)
	}

	assert.Equal(t, 1, testutil.CollectAndCount(m.FunctionCalls))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FunctionDuration))
	assert.Equal(t, 200.0, testutil.ToFloat64(m.FunctionCalls.WithLabelValues(UnknownFunctionLabel, core.KindUnknownFunction)))
}

func TestRequest_JSON(t *testing.T) {
	var req Request
	err := json.Unmarshal([]byte(`{
		"functionName": "get_products",
		"rawParams": {"category": "drinks"},
		"storeId": "store-1",
		"authToken": "tok",
		"storeConfig": {"detectedSchema": {"Product List": {"columns": ["Name", "Category"], "role": "products"}}}
	}`), &req)
	require.NoError(t, err)
	assert.Equal(t, "get_products", req.FunctionName)
	assert.Equal(t, "drinks", req.RawParams["category"])
	assert.Equal(t, "products", req.StoreConfig.DetectedSchema["Product List"].Role)
	assert.Equal(t, []string{"Name", "Category"}, req.StoreConfig.DetectedSchema["Product List"].Columns)
}

func TestExecute_TransportFailureIsGeneric(t *testing.T) {
	store := memory.New()
	store.Fail(storeID, "Services", &core.TransportError{Op: sheets.OpRead, Tab: "Services", Status: 503, Message: "backend secret detail"})
	e := newExecutor(t, store)

	res := e.Execute(context.Background(), registry.FuncGetServices, nil, fctxFor(core.DetectedSchema{"Services": {}}))
	assert.False(t, res.Success)
	assert.Equal(t, core.KindTransport, res.Kind)
	assert.Equal(t, `could not reach the spreadsheet (tab "Services"), please try again later`, res.Error)
	assert.NotContains(t, res.Error, "secret")
}

func TestExecute_UnclassifiedStoreErrorIsInternal(t *testing.T) {
	store := memory.New()
	store.Fail(storeID, "Services", errors.New("disk on fire"))
	e := newExecutor(t, store)

	res := e.Execute(context.Background(), registry.FuncGetServices, nil, fctxFor(core.DetectedSchema{"Services": {}}))
	assert.False(t, res.Success)
	assert.Equal(t, core.KindInternal, res.Kind)
}

func TestExecute_NilMatcherFallsBack(t *testing.T) {
	store := memory.New()
	store.Seed(storeID, "Services", core.Row{"Name": "Cut"}, core.Row{"Name": "Color"})
	e := newExecutor(t, store)

	res := e.Execute(context.Background(), registry.FuncGetServices, map[string]any{"query": "haircut"}, fctxFor(core.DetectedSchema{"Services": {}}))
	require.True(t, res.Success)
	assert.Equal(t, 2, res.Data["count"])
	assert.Equal(t, false, res.Data["ranked"])
}

func TestExecute_ConcurrentUse(t *testing.T) {
	store := memory.New()
	store.Seed(storeID, "Services", core.Row{"Name": "Cut"})
	e := newExecutor(t, store, func(o *Options) { o.Matcher = matcher.New(matcher.KeywordRanker{}) })

	done := make(chan core.Result, 16)
	for i := 0; i < cap(done); i++ {
		go func() {
			done <- e.Execute(context.Background(), registry.FuncGetServices, map[string]any{"query": "cut"}, fctxFor(core.DetectedSchema{"Services": {}}))
		}()
	}
	for i := 0; i < cap(done); i++ {
		res := <-done
		assert.True(t, res.Success)
	}
}
