package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kitchenedge.yaml")
	yml := `
station_id: store-42
displays: [grill, expo]
order_store:
  backend: sql
  push: local
print:
  dedup_window: 3s
  bridge_url: http://10.0.0.9:9100
display:
  auto_print: false
  print_mode: bridge
  paper_width: 58
restaurant:
  name: Servio Grill
  phone: 555-0100
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "store-42", cfg.StationID)
	assert.Equal(t, []string{"grill", "expo"}, cfg.Displays)
	assert.Equal(t, "sql", cfg.OrderStore.Backend)
	assert.Equal(t, 3*time.Second, cfg.Print.DedupWindow)
	assert.Equal(t, 30*time.Second, cfg.Print.InFlightTimeout, "unset fields keep defaults")
	assert.False(t, cfg.Display.AutoPrint)
	assert.Equal(t, 58, cfg.Display.PaperWidth)
	assert.Equal(t, "Servio Grill", cfg.Restaurant.Name)
	assert.Equal(t, "kitchenedge-store-42", cfg.ClientID())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Defaults()
	cfg.Restaurant.Name = "Night Market"
	cfg.Feed.StaleAfter = time.Minute
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Night Market", got.Restaurant.Name)
	assert.Equal(t, time.Minute, got.Feed.StaleAfter)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("station_id: [unclosed"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}
