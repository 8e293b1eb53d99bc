// Command storefn serves and exercises the store function executor.
//
//	storefn serve --config storefn.yaml
//	storefn functions
//	storefn call get_products --params '{"category":"drinks"}' --schema schema.yaml --store memory --seed rows.yaml
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/storefn"
	"github.com/hupe1980/storefn/config"
	"github.com/hupe1980/storefn/core"
	"github.com/hupe1980/storefn/executor"
	"github.com/hupe1980/storefn/matcher"
	"github.com/hupe1980/storefn/registry"
	"github.com/hupe1980/storefn/server"
	"github.com/hupe1980/storefn/sheets/memory"
)

// CLI is the root command.
type CLI struct {
	Config string `help:"Path to a YAML config file." short:"c" type:"path"`

	Serve     ServeCmd     `cmd:"" help:"Serve the HTTP API."`
	Call      CallCmd      `cmd:"" help:"Execute a single function and print the result envelope."`
	Functions FunctionsCmd `cmd:"" help:"Print the function catalog as tool definitions."`
}

// Globals is passed to every command's Run.
type Globals struct {
	ConfigPath string
	Out        io.Writer
}

type ServeCmd struct {
	Addr string `help:"Listen address (overrides server.addr)."`
}

func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	fn, err := storefn.FromConfig(cfg, reg)
	if err != nil {
		return err
	}
	logger := storefn.NewLogger(cfg.Log).WithComponent("server")

	srv := server.New(fn.Executor(), func(o *server.Options) {
		o.Logger = logger
		o.Gatherer = reg
		o.CORSOrigins = cfg.Server.CORSOrigins
		o.RateLimit = cfg.Server.RateLimit
		o.RateBurst = cfg.Server.RateBurst
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx, cfg.Server.Addr)
}

type CallCmd struct {
	Function string `arg:"" help:"Function name, e.g. get_products."`
	Params   string `help:"Raw parameters as a JSON object." default:"{}"`
	StoreID  string `help:"Store id." default:"local" name:"store-id"`
	Token    string `help:"Actor token forwarded to the spreadsheet service."`
	Schema   string `help:"YAML file with the detected schema (tab -> {columns, role})." type:"existingfile"`
	Store    string `help:"Backend: http uses the configured spreadsheet service, memory uses --seed." enum:"http,memory" default:"http"`
	Seed     string `help:"YAML file with rows per tab for the memory backend (tab -> [rows])." type:"existingfile"`
}

func (c *CallCmd) Run(g *Globals) error {
	var raw map[string]any
	if err := json.Unmarshal([]byte(c.Params), &raw); err != nil {
		return fmt.Errorf("--params must be a JSON object: %w", err)
	}

	schema := core.DetectedSchema{}
	if c.Schema != "" {
		if err := readYAML(c.Schema, &schema); err != nil {
			return err
		}
	}

	fn, err := c.build(g.ConfigPath)
	if err != nil {
		return err
	}

	res := fn.Handle(context.Background(), executor.Request{
		FunctionName: c.Function,
		RawParams:    raw,
		StoreID:      c.StoreID,
		AuthToken:    c.Token,
		StoreConfig:  core.StoreConfig{DetectedSchema: schema},
	})
	return printJSON(g.Out, res)
}

func (c *CallCmd) build(configPath string) (*storefn.StoreFn, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if c.Store == "http" {
		return storefn.FromConfig(cfg, nil)
	}

	store := memory.New()
	if c.Seed != "" {
		seed := map[string][]core.Row{}
		if err := readYAML(c.Seed, &seed); err != nil {
			return nil, err
		}
		for tab, rows := range seed {
			store.Seed(c.StoreID, tab, rows...)
		}
	}
	ranker, err := storefn.NewRanker(cfg.Ranker)
	if err != nil {
		return nil, err
	}
	return storefn.New(func(o *storefn.Options) {
		o.Store = store
		o.Ranker = ranker
		o.MatcherOptions = []func(o *matcher.Options){func(o *matcher.Options) {
			o.Timeout = cfg.Ranker.Timeout
			o.MaxCandidates = cfg.Ranker.MaxCandidates
		}}
		o.Timeout = cfg.Executor.Timeout
		o.Logger = storefn.NewLogger(cfg.Log)
	})
}

type FunctionsCmd struct{}

func (c *FunctionsCmd) Run(g *Globals) error {
	reg := registry.Default()
	if err := reg.Check(); err != nil {
		return err
	}
	return printJSON(g.Out, map[string]any{
		"version":   reg.Version(),
		"functions": reg.ToolDefinitions(),
	})
}

func readYAML(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("storefn"),
		kong.Description("Function executor for spreadsheet-backed store assistants."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&Globals{ConfigPath: cli.Config, Out: os.Stdout})
	ctx.FatalIfErrorf(err)
}
