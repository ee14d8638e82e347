package store

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "gemini:\n  model: gemini-2.5-flash\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Gemini.Endpoint == "" {
		t.Error("endpoint default not applied")
	}
	if cfg.Gemini.ProModel != "gemini-2.5-flash" {
		t.Errorf("pro_model = %q, want fallback to model", cfg.Gemini.ProModel)
	}
	if cfg.Chart.PollSeconds != 60 {
		t.Errorf("chart.poll_seconds = %d, want 60", cfg.Chart.PollSeconds)
	}
	if cfg.Chart.DefaultRange != "1M" {
		t.Errorf("chart.default_range = %q, want 1M", cfg.Chart.DefaultRange)
	}
	if cfg.Alerts.MACrossProximityPct != 1.0 {
		t.Errorf("ma_cross_proximity_pct = %v, want 1.0", cfg.Alerts.MACrossProximityPct)
	}
	if cfg.Watchlist.FilePath == "" {
		t.Error("watchlist.file_path default not applied")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	body := `
gemini:
  model: gemini-2.5-flash
  pro_model: gemini-2.5-pro
chart:
  poll_seconds: 30
alerts:
  ma_cross_proximity_pct: 2.5
`
	cfg, err := LoadConfig(writeConfig(t, body))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Gemini.ProModel != "gemini-2.5-pro" {
		t.Errorf("pro_model = %q", cfg.Gemini.ProModel)
	}
	if cfg.Chart.PollSeconds != 30 {
		t.Errorf("chart.poll_seconds = %d", cfg.Chart.PollSeconds)
	}
	if cfg.Alerts.MACrossProximityPct != 2.5 {
		t.Errorf("ma_cross_proximity_pct = %v", cfg.Alerts.MACrossProximityPct)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"negative poll", "gemini:\n  model: m\nchart:\n  poll_seconds: -5\n"},
		{"proximity out of range", "gemini:\n  model: m\nalerts:\n  ma_cross_proximity_pct: 150\n"},
		{"unknown chart range", "gemini:\n  model: m\nchart:\n  default_range: 6M\n"},
		{"telegram without chat id", "gemini:\n  model: m\nnotify:\n  telegram:\n    enabled: true\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tc.body)); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}
