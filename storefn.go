// Package storefn provides a high-level façade over the function executor and
// its collaborators (spreadsheet store, semantic matcher, logging & metrics)
// for assistants that answer customer questions from a store's spreadsheet.
// Most applications interact with this package by:
//  1. Creating a StoreFn via New() (optionally overriding the in-memory store)
//     or FromConfig() for a deployment wired from configuration
//  2. Exporting Tools() to the conversation model
//  3. Executing the function calls the model makes with Execute or Handle
//
// All defaults are safe for local development and testing; production
// deployments supply the HTTP spreadsheet client and a structured logger.
package storefn

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/storefn/config"
	"github.com/hupe1980/storefn/core"
	"github.com/hupe1980/storefn/executor"
	"github.com/hupe1980/storefn/logging"
	"github.com/hupe1980/storefn/matcher"
	"github.com/hupe1980/storefn/metrics"
	"github.com/hupe1980/storefn/model"
	"github.com/hupe1980/storefn/model/anthropic"
	"github.com/hupe1980/storefn/model/openai"
	"github.com/hupe1980/storefn/registry"
	"github.com/hupe1980/storefn/sheets"
	"github.com/hupe1980/storefn/sheets/memory"
)

// Options configures the StoreFn instance.
type Options struct {
	// Registry of callable functions (defaults to the built-in catalog).
	Registry *registry.Registry

	// Store backs every read and append (defaults to an in-memory store).
	Store sheets.Store

	// Ranker orders rows for free-text queries. Nil disables ranking and
	// queries return the unranked rows.
	Ranker matcher.Ranker

	// MatcherOptions tunes candidate bounds and the ranking timeout.
	MatcherOptions []func(o *matcher.Options)

	// Timeout bounds one function execution (defaults to executor.DefaultTimeout).
	Timeout time.Duration

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// Metrics (optional)
	Metrics *metrics.Metrics
}

// StoreFn is the high-level façade aggregating registry, executor and store.
type StoreFn struct {
	opts Options
	exec *executor.Executor
}

// New creates a StoreFn with optional overrides.
func New(optFns ...func(o *Options)) (*StoreFn, error) {
	opts := Options{
		Registry: registry.Default(),
		Store:    memory.New(),
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := opts.Registry.Check(); err != nil {
		return nil, err
	}

	var m *matcher.Matcher
	if opts.Ranker != nil {
		mfns := append([]func(o *matcher.Options){func(o *matcher.Options) {
			o.Logger = opts.Logger
			o.Metrics = opts.Metrics
		}}, opts.MatcherOptions...)
		m = matcher.New(opts.Ranker, mfns...)
	}

	exec, err := executor.New(opts.Registry, func(o *executor.Options) {
		o.Store = opts.Store
		o.Matcher = m
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
		if opts.Timeout > 0 {
			o.Timeout = opts.Timeout
		}
	})
	if err != nil {
		return nil, err
	}

	return &StoreFn{opts: opts, exec: exec}, nil
}

// FromConfig wires a StoreFn from loaded configuration: structured logger,
// Prometheus metrics registered with reg (may be nil), the HTTP spreadsheet
// client and the configured ranker.
func FromConfig(cfg *config.Config, reg prometheus.Registerer) (*StoreFn, error) {
	if err := cfg.RequireSheets(); err != nil {
		return nil, err
	}
	logger := NewLogger(cfg.Log)
	m := metrics.New(reg)

	client, err := sheets.New(sheets.Config{
		URL:     cfg.Sheets.URL,
		APIKey:  cfg.Sheets.APIKey,
		Timeout: cfg.Sheets.Timeout,
		Logger:  logger.WithComponent("sheets"),
		Metrics: m,
	})
	if err != nil {
		return nil, err
	}

	ranker, err := NewRanker(cfg.Ranker)
	if err != nil {
		return nil, err
	}

	return New(func(o *Options) {
		o.Store = client
		o.Ranker = ranker
		o.MatcherOptions = []func(o *matcher.Options){func(o *matcher.Options) {
			o.Timeout = cfg.Ranker.Timeout
			o.MaxCandidates = cfg.Ranker.MaxCandidates
			o.Logger = logger.WithComponent("matcher")
		}}
		o.Timeout = cfg.Executor.Timeout
		o.Logger = logger.WithComponent("executor")
		o.Metrics = m
	})
}

// NewLogger builds the structured logger described by cfg.
func NewLogger(cfg config.LogConfig) *logging.StoreFnLogger {
	lc := logging.DefaultLoggerConfig()
	lc.Level = logging.ParseLevel(cfg.Level)
	if cfg.Format != "" {
		lc.Format = cfg.Format
	}
	return logging.NewLogger(lc)
}

// NewRanker returns the ranker for the configured provider; nil for "none".
func NewRanker(cfg config.RankerConfig) (matcher.Ranker, error) {
	switch cfg.Provider {
	case config.ProviderNone:
		return nil, nil
	case config.ProviderKeyword, "":
		return matcher.KeywordRanker{}, nil
	case config.ProviderAnthropic:
		fns := []func(o *anthropic.Options){func(o *anthropic.Options) { o.APIKey = cfg.APIKey }}
		if cfg.Model != "" {
			fns = append(fns, anthropic.WithModelName(cfg.Model))
		}
		return matcher.NewModelRanker(anthropic.NewModel(fns...)), nil
	case config.ProviderOpenAI:
		return matcher.NewModelRanker(openai.NewModel(func(o *openai.Options) {
			o.APIKey = cfg.APIKey
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		})), nil
	default:
		return nil, fmt.Errorf("storefn: unknown ranker provider %q", cfg.Provider)
	}
}

// Execute runs one function call for the request scope fctx.
func (s *StoreFn) Execute(ctx context.Context, name string, raw map[string]any, fctx *core.FunctionContext) core.Result {
	return s.exec.Execute(ctx, name, raw, fctx)
}

// Handle runs one inbound request.
func (s *StoreFn) Handle(ctx context.Context, req executor.Request) core.Result {
	return s.exec.Handle(ctx, req)
}

// Tools exports the function catalog in the model function-calling format.
func (s *StoreFn) Tools() []model.ToolDefinition {
	return s.opts.Registry.ToolDefinitions()
}

// Executor returns the underlying executor (e.g. to mount the HTTP server).
func (s *StoreFn) Executor() *executor.Executor { return s.exec }

// Store returns the configured spreadsheet store.
func (s *StoreFn) Store() sheets.Store { return s.opts.Store }
