package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/soypat/ipstack/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Interface.Name != "tap0" {
		t.Errorf("Interface.Name = %q, want %q", cfg.Interface.Name, "tap0")
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}
	if cfg.ARP.MaxEntries != 16 {
		t.Errorf("ARP.MaxEntries = %d, want %d", cfg.ARP.MaxEntries, 16)
	}
	if cfg.Interface.PrefixLen != 24 {
		t.Errorf("Interface.PrefixLen = %d, want %d", cfg.Interface.PrefixLen, 24)
	}

	// The interface isn't fully specified (no MAC/IP) so the default alone
	// does not pass validation — callers must supply those.
	cfg.Interface.MAC = "02:00:00:00:00:01"
	cfg.Interface.IP = "192.168.1.1"
	if err := config.Validate(cfg); err != nil {
		t.Errorf("Validate() on a fully-specified default config: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
interface:
  name: "tap1"
  mac: "02:00:00:00:00:02"
  ip: "10.0.0.1"
  prefix_len: 16
  buf_size: 4096
metrics:
  addr: ":9200"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "text"
arp:
  resolve_ttl: "5m"
  pending_ttl: "2s"
  max_entries: 32
`
	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Interface.Name != "tap1" {
		t.Errorf("Interface.Name = %q, want %q", cfg.Interface.Name, "tap1")
	}
	if cfg.Interface.BufSize != 4096 {
		t.Errorf("Interface.BufSize = %d, want %d", cfg.Interface.BufSize, 4096)
	}
	if cfg.ARP.ResolveTTL != 5*time.Minute {
		t.Errorf("ARP.ResolveTTL = %v, want %v", cfg.ARP.ResolveTTL, 5*time.Minute)
	}
	if cfg.ARP.PendingTTL != 2*time.Second {
		t.Errorf("ARP.PendingTTL = %v, want %v", cfg.ARP.PendingTTL, 2*time.Second)
	}
	if cfg.ARP.MaxEntries != 32 {
		t.Errorf("ARP.MaxEntries = %d, want %d", cfg.ARP.MaxEntries, 32)
	}

	mac, err := cfg.Interface.MACAddr()
	if err != nil {
		t.Fatalf("MACAddr(): %v", err)
	}
	if mac != [6]byte{0x02, 0, 0, 0, 0, 0x02} {
		t.Errorf("MACAddr() = %x", mac)
	}
	ip, err := cfg.Interface.IPAddr()
	if err != nil {
		t.Fatalf("IPAddr(): %v", err)
	}
	if ip != [4]byte{10, 0, 0, 1} {
		t.Errorf("IPAddr() = %v", ip)
	}

	prefix, err := cfg.Interface.Prefix()
	if err != nil {
		t.Fatalf("Prefix(): %v", err)
	}
	if prefix.Bits() != 16 {
		t.Errorf("Prefix().Bits() = %d, want 16", prefix.Bits())
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	yamlContent := `
interface:
  mac: "02:00:00:00:00:03"
  ip: "10.0.0.2"
log:
  level: "warn"
`
	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}
	// Defaults preserved.
	if cfg.Interface.Name != "tap0" {
		t.Errorf("Interface.Name = %q, want default %q", cfg.Interface.Name, "tap0")
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9100")
	}
	if cfg.ARP.MaxEntries != 16 {
		t.Errorf("ARP.MaxEntries = %d, want default %d", cfg.ARP.MaxEntries, 16)
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	base := func() *config.Config {
		cfg := config.DefaultConfig()
		cfg.Interface.MAC = "02:00:00:00:00:04"
		cfg.Interface.IP = "10.0.0.3"
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name:    "empty interface name",
			modify:  func(cfg *config.Config) { cfg.Interface.Name = "" },
			wantErr: config.ErrEmptyInterfaceName,
		},
		{
			name:    "bad mac",
			modify:  func(cfg *config.Config) { cfg.Interface.MAC = "not-a-mac" },
			wantErr: config.ErrInvalidMAC,
		},
		{
			name:    "bad ip",
			modify:  func(cfg *config.Config) { cfg.Interface.IP = "not-an-ip" },
			wantErr: config.ErrInvalidIP,
		},
		{
			name:    "ipv6 address rejected",
			modify:  func(cfg *config.Config) { cfg.Interface.IP = "::1" },
			wantErr: config.ErrInvalidIP,
		},
		{
			name:    "buf size too small",
			modify:  func(cfg *config.Config) { cfg.Interface.BufSize = 8 },
			wantErr: config.ErrInvalidBufSize,
		},
		{
			name:    "zero arp entries",
			modify:  func(cfg *config.Config) { cfg.ARP.MaxEntries = 0 },
			wantErr: config.ErrInvalidARPEntries,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := base()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/netlabd.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	// Cannot be parallel: modifies process-wide environment state.
	yamlContent := `
interface:
  mac: "02:00:00:00:00:05"
  ip: "10.0.0.4"
log:
  level: "info"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("NETLABD_LOG_LEVEL", "debug")
	t.Setenv("NETLABD_METRICS_ADDR", ":9200")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (from env)", cfg.Log.Level, "debug")
	}
	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q (from env)", cfg.Metrics.Addr, ":9200")
	}
}

// writeTemp creates a temporary YAML file and returns its path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "netlabd.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
