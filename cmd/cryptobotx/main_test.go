package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupCLI writes a config pointing at the given servers and returns its
// directory.
func setupCLI(t *testing.T, backendURL, identityURL, token string) string {
	dir := t.TempDir()
	cfg := fmt.Sprintf(`backend:
  base_url: %s
  token: %q
  max_retries: 1
auth:
  api_key: test-key
  identity_url: %s
  token_url: %s
history:
  export_dir: %s
  timezone: UTC
logger:
  level: error
database:
  dsn: %s
`, backendURL, token, identityURL, identityURL, filepath.Join(dir, "exports"), filepath.Join(dir, "test.db"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(cfg), 0o644))
	return dir
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "cryptobotx version "+version)
}

func TestHistory_ExportsShownTrades(t *testing.T) {
	now := time.Now().UTC()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trades/history", r.URL.Path)
		assert.Equal(t, "Bearer static", r.Header.Get("Authorization"))
		assert.Equal(t, "live", r.URL.Query().Get("mode"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"trades": []map[string]any{
			{"id": "1", "symbol": "BTCUSDT", "side": "BUY", "amount": 0.01, "price": 45000, "timestamp": now.Add(-time.Hour), "strategy": "Grid Trading", "profit": 12.5, "status": "filled"},
			{"id": "2", "symbol": "ETHUSDT", "side": "SELL", "amount": 1, "price": 3200, "timestamp": now.Add(-2 * time.Hour), "strategy": "RSI Swing", "profit": -4, "status": "filled"},
		}})
	}))
	defer backend.Close()
	dir := setupCLI(t, backend.URL, backend.URL, "static")

	out, err := runCLI(t, "", "history", "--config", dir, "--mode", "live", "--side", "buy", "--export")

	require.NoError(t, err)
	assert.Contains(t, out, "BTCUSDT")
	assert.NotContains(t, out, "ETHUSDT")
	assert.Contains(t, out, "Exported 1 trades")

	path := filepath.Join(dir, "exports", fmt.Sprintf("cryptobotx_trades_live_%s.csv", time.Now().UTC().Format("2006-01-02")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(string(data), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], `"BTCUSDT","BUY","0.01","45000","12.5","Grid Trading"`)

	out, err = runCLI(t, "", "exports", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Base(path))
	assert.Contains(t, out, "live")
}

func TestExports_EmptyAndInvalidLimit(t *testing.T) {
	dir := setupCLI(t, "http://127.0.0.1:1", "http://127.0.0.1:1", "")

	out, err := runCLI(t, "", "exports", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No exports yet.")

	_, err = runCLI(t, "", "exports", "--config", dir, "--limit", "0")
	assert.Error(t, err)
}

func TestHistory_FallbackOnServerError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer backend.Close()
	dir := setupCLI(t, backend.URL, backend.URL, "static")

	out, err := runCLI(t, "", "history", "--config", dir, "--range", "all")

	require.NoError(t, err)
	assert.Contains(t, out, "showing sample trades")
	assert.Contains(t, out, "Trades: 15")
}

func TestHistory_RequiresSignIn(t *testing.T) {
	dir := setupCLI(t, "http://127.0.0.1:1", "http://127.0.0.1:1", "")

	_, err := runCLI(t, "", "history", "--config", dir)

	assert.ErrorContains(t, err, "not signed in")
}

func TestHistory_InvalidFilter(t *testing.T) {
	dir := setupCLI(t, "http://127.0.0.1:1", "http://127.0.0.1:1", "static")

	_, err := runCLI(t, "", "history", "--config", dir, "--range", "90d")

	assert.Error(t, err)
}

func TestLoginThenStatus(t *testing.T) {
	identity := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts:signInWithPassword", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"localId":"uid-1","email":"trader@example.com","idToken":"id-1","refreshToken":"ref-1","expiresIn":"3600"}`))
	}))
	defer identity.Close()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer id-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"configured":true,"running":true}`))
	}))
	defer backend.Close()

	dir := setupCLI(t, backend.URL, identity.URL, "")

	out, err := runCLI(t, "secret1\n", "login", "--config", dir, "--email", "trader@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as trader@example.com")

	out, err = runCLI(t, "", "status", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "running")

	_, err = runCLI(t, "", "logout", "--config", dir)
	require.NoError(t, err)
	_, err = runCLI(t, "", "status", "--config", dir)
	assert.ErrorContains(t, err, "not signed in")
}

func TestMode_LiveRequiresConfirmation(t *testing.T) {
	dir := setupCLI(t, "http://127.0.0.1:1", "http://127.0.0.1:1", "static")

	_, err := runCLI(t, "", "mode", "live", "--config", dir)

	assert.ErrorContains(t, err, "--confirm")
}
