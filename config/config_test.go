package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10.0, cfg.Server.RateLimit)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 10*time.Second, cfg.Sheets.Timeout)
	assert.Equal(t, ProviderKeyword, cfg.Ranker.Provider)
	assert.Equal(t, 50, cfg.Ranker.MaxCandidates)
	assert.Equal(t, 30*time.Second, cfg.Executor.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.Error(t, cfg.RequireSheets())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storefn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
  cors_origins: ["https://shop.example"]
sheets:
  url: https://sheets.example/functions/v1/sheets
  api_key: from-file
  timeout: 5s
ranker:
  provider: keyword
log:
  format: text
`), 0o600))

	t.Setenv("STOREFN_SHEETS_API_KEY", "from-env")
	t.Setenv("STOREFN_EXECUTOR_TIMEOUT", "12s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"https://shop.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "https://sheets.example/functions/v1/sheets", cfg.Sheets.URL)
	assert.Equal(t, "from-env", cfg.Sheets.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Sheets.Timeout)
	assert.Equal(t, 12*time.Second, cfg.Executor.Timeout)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.NoError(t, cfg.RequireSheets())
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("STOREFN_RANKER_PROVIDER", "magic")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Provider")
}

func TestLoad_ProviderNeedsKey(t *testing.T) {
	t.Setenv("STOREFN_RANKER_PROVIDER", "anthropic")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ranker.api_key")

	t.Setenv("STOREFN_RANKER_API_KEY", "sk-test")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, cfg.Ranker.Provider)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitList([]string{"a, b", "", "c"}))
}
