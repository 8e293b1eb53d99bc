package executor

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/storefn/core"
	"github.com/hupe1980/storefn/matcher"
	"github.com/hupe1980/storefn/registry"
	"github.com/hupe1980/storefn/resolver"
)

// Semantic tab roles.
const (
	RoleServices = "services"
	RoleProducts = "products"
	RoleHours    = "hours"
	RoleInfo     = "info"
	RoleLeads    = "leads"
	RoleBookings = "bookings"
)

// storeInfoRoles is the fixed read order of get_store_info with scope "all".
var storeInfoRoles = []string{RoleHours, RoleServices, RoleProducts, RoleInfo}

func (e *Executor) getServices(ctx context.Context, p map[string]any, fctx *core.FunctionContext) (map[string]any, error) {
	return e.listCatalog(ctx, p, fctx, RoleServices, matcher.KindService)
}

func (e *Executor) getProducts(ctx context.Context, p map[string]any, fctx *core.FunctionContext) (map[string]any, error) {
	return e.listCatalog(ctx, p, fctx, RoleProducts, matcher.KindProduct)
}

// listCatalog reads a services or products tab, applies the optional category
// filter and, for a query, the semantic ranking. An empty ranking falls back
// to the filtered rows.
func (e *Executor) listCatalog(ctx context.Context, p map[string]any, fctx *core.FunctionContext, role string, kind matcher.Kind) (map[string]any, error) {
	tab, err := resolver.Require(role, fctx.Schema())
	if err != nil {
		return nil, err
	}
	rows, err := e.store.Read(ctx, fctx.StoreID(), tab)
	if err != nil {
		return nil, err
	}

	if category := stringParam(p, "category"); category != "" {
		rows = filterCategory(rows, category)
	}

	ranked := false
	if query := stringParam(p, "query"); query != "" && len(rows) > 0 {
		if matched := e.matcher.Match(ctx, query, rows, kind); len(matched) > 0 {
			rows = matched
			ranked = true
		}
	}

	return map[string]any{
		role:     rows,
		"count":  len(rows),
		"ranked": ranked,
	}, nil
}

func filterCategory(rows []core.Row, category string) []core.Row {
	want := strings.ToLower(category)
	out := make([]core.Row, 0, len(rows))
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.String("category")), want) {
			out = append(out, r)
		}
	}
	return out
}

// getStoreInfo reads the requested tabs concurrently. A tab that cannot be
// resolved or read is reported under "unavailable" and returned empty; it
// never fails the whole call.
func (e *Executor) getStoreInfo(ctx context.Context, p map[string]any, fctx *core.FunctionContext) (map[string]any, error) {
	scope := stringParam(p, "scope")
	roles := storeInfoRoles
	if scope != registry.ScopeAll {
		roles = []string{scope}
	}

	results := make([][]core.Row, len(roles))
	failed := make([]bool, len(roles))

	var g errgroup.Group
	g.SetLimit(len(roles))
	for i, role := range roles {
		g.Go(func() error {
			rows, err := e.readRole(ctx, fctx, role)
			if err != nil {
				e.logger.Warn("executor.store_info.degraded",
					"store_id", fctx.StoreID(),
					"request_id", fctx.RequestID(),
					"role", role,
					"kind", core.ErrorKind(err),
					"error", err.Error(),
				)
				failed[i] = true
				rows = []core.Row{}
			}
			results[i] = rows
			return nil
		})
	}
	_ = g.Wait()

	out := map[string]any{"scope": scope}
	unavailable := []string{}
	for i, role := range roles {
		out[role] = results[i]
		if failed[i] {
			unavailable = append(unavailable, role)
		}
	}
	out["unavailable"] = unavailable
	return out, nil
}

func (e *Executor) readRole(ctx context.Context, fctx *core.FunctionContext, role string) ([]core.Row, error) {
	tab, err := resolver.Require(role, fctx.Schema())
	if err != nil {
		return nil, err
	}
	return e.store.Read(ctx, fctx.StoreID(), tab)
}

func (e *Executor) captureLead(ctx context.Context, p map[string]any, fctx *core.FunctionContext) (map[string]any, error) {
	if stringParam(p, "email") == "" && stringParam(p, "phone") == "" {
		return nil, core.NewValidationError(registry.FuncCaptureLead, "either email or phone is required")
	}
	tab, row, err := e.appendRecord(ctx, p, fctx, leadForm)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"captured": true,
		"tab":      tab,
		"lead":     row,
	}, nil
}

func (e *Executor) createBooking(ctx context.Context, p map[string]any, fctx *core.FunctionContext) (map[string]any, error) {
	tab, row, err := e.appendRecord(ctx, p, fctx, bookingForm)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"booked":  true,
		"tab":     tab,
		"booking": row,
	}, nil
}

// appendRecord resolves the form's tab, builds a row restricted to the tab's
// declared columns and appends it.
func (e *Executor) appendRecord(ctx context.Context, p map[string]any, fctx *core.FunctionContext, f form) (string, core.Row, error) {
	tab, ok := resolver.Resolve(f.role, fctx.Schema())
	if !ok {
		return "", nil, &core.ResolutionError{Role: f.role, Message: f.unavailable}
	}
	row := f.build(fctx.Schema().Columns(tab), p, e.now())
	if err := e.store.Append(ctx, fctx.StoreID(), tab, row); err != nil {
		return "", nil, err
	}
	return tab, row, nil
}

// form describes how a write function maps its parameters onto a tab.
type form struct {
	role        string
	unavailable string
	// defaults apply when the tab declares no columns.
	defaults []string
	// fields maps a parameter to the normalized headers it may fill.
	fields []field
	// stampColumn receives the submission time; statusColumn the initial status.
	stampColumn  string
	statusColumn string
	status       string
}

type field struct {
	param   string
	headers []string
}

var leadForm = form{
	role:        RoleLeads,
	unavailable: "lead capture not available: add a leads tab to your spreadsheet",
	defaults:    []string{"Name", "Email", "Phone", "Message"},
	fields: []field{
		{"name", []string{"name", "fullname", "customername"}},
		{"email", []string{"email", "emailaddress"}},
		{"phone", []string{"phone", "phonenumber", "mobile"}},
		{"message", []string{"message", "notes", "comments"}},
		{"interest", []string{"interest", "interestedin"}},
	},
	stampColumn:  "Date",
	statusColumn: "Status",
	status:       "New",
}

var bookingForm = form{
	role:        RoleBookings,
	unavailable: "booking not available: add a bookings tab to your spreadsheet",
	defaults:    []string{"Name", "Service", "Date", "Time", "Email", "Phone", "Party Size", "Notes"},
	fields: []field{
		{"name", []string{"name", "fullname", "customername"}},
		{"service", []string{"service", "treatment"}},
		{"date", []string{"date", "bookingdate", "day"}},
		{"time", []string{"time", "starttime", "slot"}},
		{"email", []string{"email", "emailaddress"}},
		{"phone", []string{"phone", "phonenumber", "mobile"}},
		{"party_size", []string{"partysize", "guests", "people"}},
		{"notes", []string{"notes", "comments", "message"}},
	},
	stampColumn:  "Created",
	statusColumn: "Status",
	status:       "Requested",
}

// build maps parameters onto columns. Every column is present in the row,
// empty when no parameter fills it. Parameters without a matching column
// are dropped; each column is filled at most once. The stamp and status
// columns are always set, reusing a declared column of the same name.
func (f form) build(columns []string, p map[string]any, now time.Time) core.Row {
	if len(columns) == 0 {
		columns = f.defaults
	}

	row := make(core.Row, len(columns)+2)
	for _, col := range columns {
		row[col] = ""
	}
	used := make(map[string]bool, len(columns))
	for _, fl := range f.fields {
		v, ok := p[fl.param]
		if !ok || isBlank(v) {
			continue
		}
		if col, ok := matchColumn(columns, fl.headers, used); ok {
			row[col] = v
			used[col] = true
		}
	}

	row[declaredOr(columns, f.stampColumn)] = now.UTC().Format(time.RFC3339)
	row[declaredOr(columns, f.statusColumn)] = f.status
	return row
}

func matchColumn(columns, headers []string, used map[string]bool) (string, bool) {
	for _, h := range headers {
		for _, col := range columns {
			if used[col] {
				continue
			}
			if core.NormalizeHeader(col) == h {
				return col, true
			}
		}
	}
	return "", false
}

func declaredOr(columns []string, name string) string {
	want := core.NormalizeHeader(name)
	for _, col := range columns {
		if core.NormalizeHeader(col) == want {
			return col
		}
	}
	return name
}

func stringParam(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return strings.TrimSpace(s)
}

func isBlank(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
