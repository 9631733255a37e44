package server

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg.GNSS.Type != "demo" || cfg.GNSS.BaudRate != 9600 {
		t.Errorf("gnss defaults = %+v", cfg.GNSS)
	}
	if cfg.Driver.HorizontalNoiseM != 2.5 || cfg.Driver.VerticalNoiseM != 5.0 {
		t.Errorf("driver defaults = %+v", cfg.Driver)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen addr = %q", cfg.Server.ListenAddr)
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
gnss:
  type: serial
  port_path: /dev/ttyAMA0
  baud_rate: 115200
driver:
  rate_hz: 10
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := LoadConfig(path)
	if cfg.GNSS.Type != "serial" || cfg.GNSS.PortPath != "/dev/ttyAMA0" || cfg.GNSS.BaudRate != 115200 {
		t.Errorf("gnss = %+v", cfg.GNSS)
	}
	if cfg.Driver.RateHz != 10 {
		t.Errorf("rate = %v, want 10", cfg.Driver.RateHz)
	}
	// Unset fields keep their defaults
	if cfg.Driver.AcquireTimeoutMs != 1000 {
		t.Errorf("acquire timeout = %d, want default 1000", cfg.Driver.AcquireTimeoutMs)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GNSS_PORT", "/dev/ttyUSB3")
	t.Setenv("GNSS_RATE_HZ", "4")
	cfg := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg.GNSS.PortPath != "/dev/ttyUSB3" {
		t.Errorf("port = %q, want env override", cfg.GNSS.PortPath)
	}
	if cfg.Driver.RateHz != 4 {
		t.Errorf("rate = %v, want 4", cfg.Driver.RateHz)
	}
}

func TestUpdateFromJSONPreservesUnset(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.UpdateFromJSON([]byte(`{"gnss":{"type":"serial"}}`)); err != nil {
		t.Fatal(err)
	}
	if cfg.GNSS.Type != "serial" {
		t.Errorf("type = %q, want serial", cfg.GNSS.Type)
	}
	if cfg.GNSS.BaudRate != 9600 || cfg.Server.ListenAddr != ":8080" {
		t.Errorf("patch clobbered unrelated fields: %+v %+v", cfg.GNSS, cfg.Server)
	}
}
