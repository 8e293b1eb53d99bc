package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/storefn/core"
	"github.com/hupe1980/storefn/logging"
	"github.com/hupe1980/storefn/matcher"
	"github.com/hupe1980/storefn/metrics"
	"github.com/hupe1980/storefn/params"
	"github.com/hupe1980/storefn/registry"
	"github.com/hupe1980/storefn/sheets"
)

// DefaultTimeout bounds a whole function execution including every external
// call it makes.
const DefaultTimeout = 30 * time.Second

// Handler implements one function. It receives parameters that already
// passed schema validation and returns the success payload or a typed error.
// Handlers never build envelopes themselves.
type Handler func(ctx context.Context, p map[string]any, fctx *core.FunctionContext) (map[string]any, error)

// Request is the inbound shape of a single function call.
type Request struct {
	FunctionName string           `json:"functionName" binding:"required"`
	RawParams    map[string]any   `json:"rawParams"`
	StoreID      string           `json:"storeId" binding:"required"`
	AuthToken    string           `json:"authToken"`
	StoreConfig  core.StoreConfig `json:"storeConfig"`
}

// Options configures an Executor.
type Options struct {
	// Store is the spreadsheet backend. Required.
	Store sheets.Store
	// Matcher ranks rows for free-text queries. Nil disables ranking.
	Matcher *matcher.Matcher
	Logger  logging.Logger
	Metrics *metrics.Metrics
	// Timeout for a whole execution. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Now stamps written rows. Defaults to time.Now.
	Now func() time.Time
	// Handlers adds or replaces handlers by function name. Every name must
	// exist in the registry.
	Handlers map[string]Handler
}

// Executor validates, dispatches and executes registered functions. It is
// safe for concurrent use.
type Executor struct {
	registry *registry.Registry
	handlers map[string]Handler
	store    sheets.Store
	matcher  *matcher.Matcher
	logger   logging.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
	now      func() time.Time
}

// New creates an Executor for reg. It fails when the handler set and the
// registry disagree, so a misconfigured deployment never starts.
func New(reg *registry.Registry, optFns ...func(o *Options)) (*Executor, error) {
	opts := Options{
		Timeout: DefaultTimeout,
		Now:     time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if reg == nil {
		return nil, fmt.Errorf("executor: registry is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("executor: store is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &Executor{
		registry: reg,
		store:    opts.Store,
		matcher:  opts.Matcher,
		logger:   logging.OrNoOp(opts.Logger),
		metrics:  opts.Metrics,
		timeout:  opts.Timeout,
		now:      opts.Now,
	}

	builtin := map[string]Handler{
		registry.FuncGetServices:   e.getServices,
		registry.FuncGetProducts:   e.getProducts,
		registry.FuncGetStoreInfo:  e.getStoreInfo,
		registry.FuncCaptureLead:   e.captureLead,
		registry.FuncCreateBooking: e.createBooking,
	}
	e.handlers = make(map[string]Handler, len(builtin))
	for _, name := range reg.Names() {
		if h, ok := builtin[name]; ok {
			e.handlers[name] = h
		}
	}
	for name, h := range opts.Handlers {
		if h == nil {
			return nil, fmt.Errorf("executor: handler %q is nil", name)
		}
		e.handlers[name] = h
	}

	if err := e.checkDispatch(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Executor) checkDispatch() error {
	var problems []string
	for _, name := range e.registry.SortedNames() {
		if _, ok := e.handlers[name]; !ok {
			problems = append(problems, fmt.Sprintf("function %q has no handler", name))
		}
	}
	names := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := e.registry.Lookup(name); !ok {
			problems = append(problems, fmt.Sprintf("handler %q is not registered", name))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("executor: dispatch does not match registry: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Registry returns the registry the executor was built for.
func (e *Executor) Registry() *registry.Registry { return e.registry }

// Handle builds the request context for req and executes it.
func (e *Executor) Handle(ctx context.Context, req Request) core.Result {
	fctx := core.NewFunctionContext(req.StoreID, req.AuthToken, req.StoreConfig)
	return e.Execute(ctx, req.FunctionName, req.RawParams, fctx)
}

// Execute runs the named function. It always returns an envelope: unknown
// names, validation problems, missing tabs, transport failures and panics all
// become failures.
func (e *Executor) Execute(ctx context.Context, name string, raw map[string]any, fctx *core.FunctionContext) core.Result {
	if fctx == nil {
		fctx = core.NewFunctionContext("", "", core.StoreConfig{})
	}
	log := e.callLogger(fctx)
	log.Info("executor.call.start", "function", name)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	if token := fctx.AuthToken(); token != "" {
		ctx = sheets.WithCredential(ctx, token)
	}

	start := time.Now()
	var (
		data map[string]any
		err  error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
				log.Error("executor.call.panic", "function", name, "recover", fmt.Sprint(r), "stack", string(debug.Stack()))
			}
		}()
		data, err = e.dispatch(ctx, name, raw, fctx)
	}()
	dur := time.Since(start)

	var res core.Result
	outcome := metrics.OutcomeSuccess
	if err != nil {
		res = core.Fail(err)
		outcome = res.Kind
	} else {
		res = core.Succeed(data)
	}
	e.metrics.ObserveFunction(metricLabel(name, err), outcome, dur)

	args := []any{
		"function", name,
		"duration_ms", dur.Milliseconds(),
		"success", err == nil,
	}
	if err != nil {
		args = append(args, "kind", res.Kind, "error", err.Error())
	}
	log.Info("executor.call.done", args...)
	return res
}

func (e *Executor) dispatch(ctx context.Context, name string, raw map[string]any, fctx *core.FunctionContext) (map[string]any, error) {
	h, ok := e.handlers[name]
	if !ok {
		return nil, &core.UnknownFunctionError{Name: name}
	}
	def, ok := e.registry.Lookup(name)
	if !ok {
		return nil, &core.UnknownFunctionError{Name: name}
	}
	v := params.Validate(def.Parameters, raw)
	if err := v.Err(name); err != nil {
		return nil, err
	}
	return h(ctx, v.Data, fctx)
}

// UnknownFunctionLabel replaces unregistered names in metric labels so
// arbitrary caller input cannot create new series.
const UnknownFunctionLabel = "unknown"

func metricLabel(name string, err error) string {
	var ue *core.UnknownFunctionError
	if errors.As(err, &ue) {
		return UnknownFunctionLabel
	}
	return name
}

// callLogger tags every line of one execution with the store and request.
func (e *Executor) callLogger(fctx *core.FunctionContext) logging.Logger {
	if l, ok := e.logger.(*logging.StoreFnLogger); ok {
		return l.WithStore(fctx.StoreID(), fctx.RequestID())
	}
	return &taggedLogger{base: e.logger, tags: []any{"store_id", fctx.StoreID(), "request_id", fctx.RequestID()}}
}

type taggedLogger struct {
	base logging.Logger
	tags []any
}

func (l *taggedLogger) with(args []any) []any {
	return append(append(make([]any, 0, len(l.tags)+len(args)), l.tags...), args...)
}

func (l *taggedLogger) Debug(msg string, args ...any) { l.base.Debug(msg, l.with(args)...) }
func (l *taggedLogger) Info(msg string, args ...any)  { l.base.Info(msg, l.with(args)...) }
func (l *taggedLogger) Warn(msg string, args ...any)  { l.base.Warn(msg, l.with(args)...) }
func (l *taggedLogger) Error(msg string, args ...any) { l.base.Error(msg, l.with(args)...) }

func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }
