// Package config manages the netlabd daemon configuration using koanf/v2.
//
// Supports YAML files and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete netlabd configuration.
type Config struct {
	Interface InterfaceConfig `koanf:"interface"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Log       LogConfig       `koanf:"log"`
	ARP       ARPConfig       `koanf:"arp"`
}

// InterfaceConfig describes the single network interface this stack drives.
type InterfaceConfig struct {
	// Name is the TAP device name (e.g., "tap0").
	Name string `koanf:"name"`
	// MAC is the interface's hardware address, "xx:xx:xx:xx:xx:xx".
	MAC string `koanf:"mac"`
	// IP is the interface's IPv4 address, no CIDR suffix.
	IP string `koanf:"ip"`
	// PrefixLen is the subnet prefix length assigned to the TAP device
	// alongside IP (e.g., 24 for a /24). It has no bearing on the stack's
	// own IPv4 handling, which is routeless and single-subnet by design —
	// it only matters for `ip addr add` when the interface is brought up.
	PrefixLen int `koanf:"prefix_len"`
	// BufSize sizes the stack's receive and transmit scratch buffers.
	BufSize int `koanf:"buf_size"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// ARPConfig holds the ARP resolution/pending table parameters.
type ARPConfig struct {
	// ResolveTTL is how long a resolved IP->MAC mapping is trusted.
	ResolveTTL time.Duration `koanf:"resolve_ttl"`
	// PendingTTL is how long a send waits on an in-flight ARP request.
	PendingTTL time.Duration `koanf:"pending_ttl"`
	// MaxEntries bounds the resolution and pending tables.
	MaxEntries int `koanf:"max_entries"`
}

// MACAddr parses Interface.MAC into a [6]byte hardware address.
func (c InterfaceConfig) MACAddr() (mac [6]byte, err error) {
	parts := strings.Split(c.MAC, ":")
	if len(parts) != 6 {
		return mac, fmt.Errorf("interface.mac %q: %w", c.MAC, ErrInvalidMAC)
	}
	for i, p := range parts {
		var b int
		if _, err := fmt.Sscanf(p, "%02x", &b); err != nil || b > 0xff {
			return mac, fmt.Errorf("interface.mac %q: %w", c.MAC, ErrInvalidMAC)
		}
		mac[i] = byte(b)
	}
	return mac, nil
}

// IPAddr parses Interface.IP into a [4]byte address.
func (c InterfaceConfig) IPAddr() (ip [4]byte, err error) {
	addr, err := netip.ParseAddr(c.IP)
	if err != nil || !addr.Is4() {
		return ip, fmt.Errorf("interface.ip %q: %w", c.IP, ErrInvalidIP)
	}
	return addr.As4(), nil
}

// Prefix builds the netip.Prefix (IP/PrefixLen) used to assign the TAP
// device its subnet address at startup.
func (c InterfaceConfig) Prefix() (netip.Prefix, error) {
	addr, err := netip.ParseAddr(c.IP)
	if err != nil || !addr.Is4() {
		return netip.Prefix{}, fmt.Errorf("interface.ip %q: %w", c.IP, ErrInvalidIP)
	}
	return netip.PrefixFrom(addr, c.PrefixLen), nil
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults for a
// single small TAP-backed interface.
func DefaultConfig() *Config {
	return &Config{
		Interface: InterfaceConfig{
			Name:      "tap0",
			PrefixLen: 24,
			BufSize:   2048,
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		ARP: ARPConfig{
			ResolveTTL: 10 * time.Minute,
			PendingTTL: time.Second,
			MaxEntries: 16,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for netlabd configuration.
// Variables are named NETLABD_<section>_<key>, e.g., NETLABD_METRICS_ADDR.
// Every underscore after the prefix becomes a key separator, so keys that
// contain an underscore themselves (interface.buf_size, arp.max_entries, ...)
// cannot be set from the environment.
const envPrefix = "NETLABD_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (NETLABD_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms NETLABD_METRICS_ADDR -> metrics.addr.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"interface.name":       defaults.Interface.Name,
		"interface.prefix_len": defaults.Interface.PrefixLen,
		"interface.buf_size":   defaults.Interface.BufSize,
		"metrics.addr":         defaults.Metrics.Addr,
		"metrics.path":         defaults.Metrics.Path,
		"log.level":            defaults.Log.Level,
		"log.format":           defaults.Log.Format,
		"arp.resolve_ttl":      defaults.ARP.ResolveTTL.String(),
		"arp.pending_ttl":      defaults.ARP.PendingTTL.String(),
		"arp.max_entries":      defaults.ARP.MaxEntries,
	}
	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}
	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	ErrEmptyInterfaceName = errors.New("interface.name must not be empty")
	ErrInvalidMAC         = errors.New("interface.mac must be a 6-byte colon-separated hex address")
	ErrInvalidIP          = errors.New("interface.ip must be a valid IPv4 address")
	ErrInvalidBufSize     = errors.New("interface.buf_size must be large enough for one unfragmented datagram")
	ErrInvalidARPEntries  = errors.New("arp.max_entries must be >= 1")
)

// minBufSize is the smallest buffer that can hold one full-size 1500-byte
// IPv4 datagram (the size of every fragment but the last) plus the 42 bytes
// of leading room (ARP + Ethernet header sizes) that ipv4.Stack's linkSlack
// reserves ahead of the IP header.
const minBufSize = 1500 + 28 + 14

// Validate checks the configuration for logical errors.
func Validate(cfg *Config) error {
	if cfg.Interface.Name == "" {
		return ErrEmptyInterfaceName
	}
	if _, err := cfg.Interface.MACAddr(); err != nil {
		return err
	}
	if _, err := cfg.Interface.IPAddr(); err != nil {
		return err
	}
	if cfg.Interface.BufSize < minBufSize {
		return ErrInvalidBufSize
	}
	if cfg.ARP.MaxEntries < 1 {
		return ErrInvalidARPEntries
	}
	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
