package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/pkg/tlsutil"
)

// Storage drivers.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Default ports.
const (
	DefaultLVAPPPort   = 4433
	DefaultVBSPPort    = 2210
	DefaultLVNFPPort   = 4422
	DefaultAPIPort     = 8888
	DefaultFeedsPort   = 5533
	DefaultMetricsPort = 9090
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EMPOWER"

// Config is the complete controller configuration.
type Config struct {
	LVAPP   ListenerConfig `json:"lvapp"`
	VBSP    ListenerConfig `json:"vbsp"`
	LVNFP   ListenerConfig `json:"lvnfp"`
	API     APIConfig      `json:"api"`
	Feeds   ListenerConfig `json:"feeds"`
	Metrics MetricsConfig  `json:"metrics"`
	Storage StorageConfig  `json:"storage"`
	NATS    NATSConfig     `json:"nats"`
	Runtime RuntimeConfig  `json:"runtime"`
	Admin   AdminConfig    `json:"admin"`

	Services ServiceConfigs `json:"services"`
}

// ListenerConfig is a TCP listen address. Port 0 binds an ephemeral port.
type ListenerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns host:port.
func (l ListenerConfig) Addr() string { return fmt.Sprintf("%s:%d", l.Host, l.Port) }

// APIConfig configures the northbound REST server.
type APIConfig struct {
	ListenerConfig
	CORSOrigins []string           `json:"cors_origins,omitempty"`
	TLS         tlsutil.ServerConfig `json:"tls,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Port int    `json:"port"`
	Path string `json:"path"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `json:"driver"`
	Path   string `json:"path,omitempty"`
}

// NATSConfig configures event export. No URLs disables it.
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty"`
	SubjectPrefix string        `json:"subject_prefix"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`

	TLS tlsutil.ClientConfig `json:"tls,omitempty"`
}

// Enabled reports whether event export is configured.
func (n NATSConfig) Enabled() bool { return len(n.URLs) > 0 }

// RuntimeConfig tunes device sessions and the event loop.
type RuntimeConfig struct {
	HelloFallback    time.Duration `json:"hello_fallback"`
	WatchdogInterval time.Duration `json:"watchdog_interval"`
	WriteTimeout     time.Duration `json:"write_timeout"`
	QueueSize        int           `json:"queue_size"`
	LoopQueue        int           `json:"loop_queue"`
}

// AdminConfig is the account created when the store holds none.
type AdminConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ServiceConfig enables a service and carries its own settings.
type ServiceConfig struct {
	Name    string          `json:"name"`
	Enabled bool            `json:"enabled"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// ServiceConfigs is keyed by service name.
type ServiceConfigs map[string]ServiceConfig

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		LVAPP:   ListenerConfig{Port: DefaultLVAPPPort},
		VBSP:    ListenerConfig{Port: DefaultVBSPPort},
		LVNFP:   ListenerConfig{Port: DefaultLVNFPPort},
		API:     APIConfig{ListenerConfig: ListenerConfig{Port: DefaultAPIPort}},
		Feeds:   ListenerConfig{Port: DefaultFeedsPort},
		Metrics: MetricsConfig{Port: DefaultMetricsPort, Path: "/metrics"},
		Storage: StorageConfig{Driver: StorageMemory},
		NATS: NATSConfig{
			SubjectPrefix: "empower.events",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Runtime: RuntimeConfig{
			HelloFallback:    2 * time.Second,
			WatchdogInterval: 500 * time.Millisecond,
			WriteTimeout:     5 * time.Second,
			QueueSize:        1024,
			LoopQueue:        4096,
		},
		Admin: AdminConfig{Username: "root", Password: "root"},
		Services: ServiceConfigs{
			"lvapp":   {Name: "lvapp", Enabled: true},
			"vbsp":    {Name: "vbsp", Enabled: true},
			"lvnfp":   {Name: "lvnfp", Enabled: true},
			"api":     {Name: "api", Enabled: true},
			"feeds":   {Name: "feeds", Enabled: true},
			"metrics": {Name: "metrics", Enabled: true},
			"events":  {Name: "events", Enabled: true},
		},
	}
}

// Validate checks ranges and cross-field rules.
func (c *Config) Validate() error {
	ports := map[string]int{
		"lvapp.port":   c.LVAPP.Port,
		"vbsp.port":    c.VBSP.Port,
		"lvnfp.port":   c.LVNFP.Port,
		"api.port":     c.API.Port,
		"feeds.port":   c.Feeds.Port,
		"metrics.port": c.Metrics.Port,
	}
	for key, port := range ports {
		if port < 0 || port > 65535 {
			return errors.WrapInvalid(fmt.Errorf("%s %d out of range", key, port), "Config", "Validate", "port check")
		}
	}
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.Path == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "storage.path is required for sqlite")
		}
	default:
		return errors.WrapInvalid(fmt.Errorf("storage.driver %q", c.Storage.Driver), "Config", "Validate", "storage driver check")
	}
	if c.NATS.Enabled() {
		for _, part := range strings.Split(c.NATS.SubjectPrefix, ".") {
			if !isValidSubjectToken(part) {
				return errors.WrapInvalid(fmt.Errorf("nats.subject_prefix %q", c.NATS.SubjectPrefix), "Config", "Validate", "subject check")
			}
		}
	}
	if err := c.API.TLS.Validate(); err != nil {
		return err
	}
	if err := c.NATS.TLS.Validate(); err != nil {
		return err
	}
	if c.Runtime.HelloFallback <= 0 || c.Runtime.WatchdogInterval <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "runtime periods must be positive")
	}
	if c.Admin.Username == "" || c.Admin.Password == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "admin credentials")
	}
	for name, svc := range c.Services {
		if name == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "service name cannot be empty")
		}
		if len(svc.Config) > 0 && !json.Valid(svc.Config) {
			return errors.WrapInvalid(errors.ErrInvalidData, "Config", "Validate", "services."+name+".config")
		}
	}
	return nil
}

// ServiceEnabled reports whether name is enabled. Missing services are off.
func (c *Config) ServiceEnabled(name string) bool {
	svc, ok := c.Services[name]
	return ok && svc.Enabled
}

func isValidSubjectToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// String renders the configuration as JSON with secrets masked.
func (c *Config) String() string {
	masked := *c
	if masked.NATS.Password != "" {
		masked.NATS.Password = "***"
	}
	if masked.NATS.Token != "" {
		masked.NATS.Token = "***"
	}
	masked.Admin.Password = "***"
	data, _ := json.MarshalIndent(&masked, "", "  ")
	return string(data)
}

// Loader merges configuration layers.
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	getenv     func(string) string
}

// NewLoader returns a loader with no layers.
func NewLoader() *Loader {
	return &Loader{envPrefix: EnvPrefix, getenv: os.Getenv}
}

// AddLayer appends a file layer. Later layers win.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation runs Validate at the end of Load.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads defaults plus the single layer path.
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load builds the configuration from every layer.
func (l *Loader) Load() (*Config, error) {
	merged, err := toMap(Defaults())
	if err != nil {
		return nil, err
	}
	for _, path := range l.layers {
		layer, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "load "+path)
		}
		merged = deepMergeMaps(merged, layer)
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "encode merged layers")
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "decode merged layers")
	}
	if err := l.applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func toMap(c *Config) (map[string]any, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	return m, json.Unmarshal(data, &m)
}

// loadRaw reads one layer into a generic map with durations normalised to
// nanoseconds.
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		// align yaml scalars with what encoding/json produces
		if raw, err = normaliseYAML(raw); err != nil {
			return nil, err
		}
	default:
		if err := validateJSONDepth(data); err != nil {
			return nil, fmt.Errorf("invalid JSON structure: %w", err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	}
	if err := parseDurations(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func normaliseYAML(raw map[string]any) (map[string]any, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	return out, json.Unmarshal(data, &out)
}

var durationKeys = map[string][]string{
	"runtime": {"hello_fallback", "watchdog_interval", "write_timeout"},
	"nats":    {"reconnect_wait"},
}

func parseDurations(raw map[string]any) error {
	for section, keys := range durationKeys {
		m, ok := raw[section].(map[string]any)
		if !ok {
			continue
		}
		for _, key := range keys {
			s, ok := m[key].(string)
			if !ok {
				continue
			}
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", section, key, err)
			}
			m[key] = d.Nanoseconds()
		}
	}
	return nil
}

// deepMergeMaps merges override into base; nested maps merge, anything else
// replaces. Nil values in override are ignored.
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if v == nil {
			continue
		}
		if bm, ok := base[k].(map[string]any); ok {
			if om, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(bm, om)
				continue
			}
		}
		result[k] = v
	}
	return result
}

func (l *Loader) env(key string) (string, error) {
	full := l.envPrefix + "_" + key
	val := l.getenv(full)
	return val, validateEnvVar(full, val)
}

func (l *Loader) applyEnvOverrides(cfg *Config) error {
	ports := []struct {
		key  string
		port *int
	}{
		{"LVAPP_PORT", &cfg.LVAPP.Port},
		{"VBSP_PORT", &cfg.VBSP.Port},
		{"LVNFP_PORT", &cfg.LVNFP.Port},
		{"API_PORT", &cfg.API.Port},
		{"FEEDS_PORT", &cfg.Feeds.Port},
		{"METRICS_PORT", &cfg.Metrics.Port},
	}
	for _, p := range ports {
		val, err := l.env(p.key)
		if err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", p.key)
		}
		if val == "" {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", p.key)
		}
		*p.port = n
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"STORAGE_DRIVER", &cfg.Storage.Driver},
		{"STORAGE_PATH", &cfg.Storage.Path},
		{"NATS_SUBJECT_PREFIX", &cfg.NATS.SubjectPrefix},
		{"NATS_USERNAME", &cfg.NATS.Username},
		{"NATS_PASSWORD", &cfg.NATS.Password},
		{"NATS_TOKEN", &cfg.NATS.Token},
		{"ADMIN_USERNAME", &cfg.Admin.Username},
		{"ADMIN_PASSWORD", &cfg.Admin.Password},
	}
	for _, s := range strs {
		val, err := l.env(s.key)
		if err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", s.key)
		}
		if val != "" {
			*s.dst = val
		}
	}

	val, err := l.env("NATS_URLS")
	if err != nil {
		return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "NATS_URLS")
	}
	if val != "" {
		cfg.NATS.URLs = strings.Split(val, ",")
	}
	return nil
}
