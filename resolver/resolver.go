// Package resolver maps a semantic tab role ("services", "leads") to the
// physical tab name a store owner chose for it.
//
// Resolution is a pure function of the role and the detected schema: tabs are
// always visited in sorted order, so the same inputs give the same answer no
// matter how often or in which order roles are resolved within a request.
package resolver

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hupe1980/storefn/core"
)

// Resolve returns the physical tab for role. Matching order, first hit wins:
//
//  1. tab name equals role (case-insensitive)
//  2. the tab's inferred role equals role (case-insensitive)
//  3. tab name contains role, or role contains tab name (case-insensitive)
//
// It reports false when nothing matches; callers must surface that as a
// configuration problem rather than guess.
func Resolve(role string, schema core.DetectedSchema) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(role))
	if want == "" || len(schema) == 0 {
		return "", false
	}
	tabs := schema.Tabs()

	for _, tab := range tabs {
		if strings.ToLower(strings.TrimSpace(tab)) == want {
			return tab, true
		}
	}

	for _, tab := range tabs {
		if strings.ToLower(strings.TrimSpace(schema[tab].Role)) == want {
			return tab, true
		}
	}

	for _, tab := range tabs {
		name := strings.ToLower(strings.TrimSpace(tab))
		if name == "" {
			continue
		}
		if strings.Contains(name, want) || strings.Contains(want, name) {
			return tab, true
		}
	}

	return "", false
}

// Require resolves role or returns a *core.ResolutionError whose message
// tells the store owner what to add.
func Require(role string, schema core.DetectedSchema) (string, error) {
	if tab, ok := Resolve(role, schema); ok {
		return tab, nil
	}
	return "", NotConfigured(role)
}

// NotConfigured builds the actionable error for a missing role.
func NotConfigured(role string) *core.ResolutionError {
	return &core.ResolutionError{
		Role:    role,
		Message: fmt.Sprintf("no %s tab found in your spreadsheet: add a tab named %q", role, titleCase(role)),
	}
}

func titleCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
