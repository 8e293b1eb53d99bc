// Package executor is the single entry point the conversation layer uses to
// run a function.
//
// Every call goes through the same steps: look up the handler, validate the
// raw parameters against the registered schema, resolve the semantic tab,
// read or append rows, optionally rank them, and shape the payload. Execute
// converts every outcome, including panics, into a core.Result envelope.
//
// Example:
//
//	exec, err := executor.New(registry.Default(), func(o *executor.Options) {
//		o.Store = store
//		o.Matcher = matcher.New(matcher.KeywordRanker{})
//	})
//	if err != nil {
//		return err
//	}
//	res := exec.Execute(ctx, "get_products", map[string]any{"category": "drinks"}, fctx)
package executor
