package app

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"habitbot/internal/config"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

const testConfig = `
http:
  addr: "127.0.0.1:0"
auth:
  jwt_secret: "s3cret"
logging:
  level: error
scheduler:
  enabled: true
  timezone: UTC
storage:
  driver: sqlite
  dsn: %DSN%
`

func bootTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	body := strings.ReplaceAll(testConfig, "%DSN%", filepath.Join(dir, "app.db"))
	base, err := Bootstrap(writeConfig(t, dir, body))
	require.NoError(t, err)

	a, err := NewApp(context.Background(), base)
	require.NoError(t, err)
	return a
}

func TestAppServesHealth(t *testing.T) {
	a := bootTestApp(t)
	require.NoError(t, a.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, a.Stop(ctx, StopUnknown))
	}()

	var addr string
	require.Eventually(t, func() bool {
		addr = a.http.Addr()
		return addr != ""
	}, 3*time.Second, 20*time.Millisecond)

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "ok", body["storage"])
	require.Contains(t, body, "scheduler")

	resp2, err := http.Get("http://" + addr + "/habits/")
	require.NoError(t, err)
	resp2.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestNewAppRequiresSecret(t *testing.T) {
	dir := t.TempDir()
	base, err := Bootstrap(writeConfig(t, dir, "storage:\n  dsn: "+filepath.Join(dir, "x.db")+"\n"))
	require.NoError(t, err)
	defer base.Close()
	_, err = NewApp(context.Background(), base)
	require.ErrorContains(t, err, "jwt_secret")
}

func TestApplyReloadsLiveSections(t *testing.T) {
	a := bootTestApp(t)
	defer func() { _ = a.store.Close() }()

	oldCfg := a.cfgm.Get()
	newCfg := *oldCfg
	newCfg.Pagination = config.PaginationConfig{PageSize: 2, MaxPageSize: 4}
	newCfg.Scheduler.Timezone = "Europe/Moscow"
	newCfg.Storage.DSN = "elsewhere.db"

	a.apply(oldCfg, &newCfg)
	require.Equal(t, "Europe/Moscow", a.sched.Location().String())
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()
	sc, err := mapStorageConfig(&config.Config{})
	require.NoError(t, err)
	require.Equal(t, "sqlite", sc.Driver)
	require.Equal(t, defaultSQLitePath, sc.DSN)
	require.Equal(t, 5*time.Second, sc.BusyTimeout)

	_, err = mapStorageConfig(&config.Config{Storage: config.StorageConfig{Driver: "postgres"}})
	require.Error(t, err)

	sc, err = mapStorageConfig(&config.Config{Storage: config.StorageConfig{Driver: "PostgreSQL", DSN: "postgres://x"}})
	require.NoError(t, err)
	require.Equal(t, "postgres", sc.Driver)
}
