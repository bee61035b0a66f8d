package costscope

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the engine configuration. Instances are configured during
// initialization and treated as immutable afterwards.
type Config struct {
	API     APIConfig
	Storage StorageConfig
	Renewal RenewalConfig
	Notify  NotifyConfig
	Ops     OpsConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

// APIConfig configures the wire client for the auth endpoints.
type APIConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Backend is "file" or "redis". Ignored when an explicit store is
	// supplied through Builder.WithStorage.
	Backend string
	// FilePath locates the session record for the file backend.
	FilePath string
	// Namespace prefixes the record key for the redis backend.
	Namespace string
	// MirrorBuffer bounds the queue between session mutations and the
	// durable write behind them.
	MirrorBuffer int
}

// RenewalConfig tunes the renewal coordinator.
type RenewalConfig struct {
	// ProactiveLeeway is the window before access-credential expiry in
	// which Engine.NeedsRenewal already reports true.
	ProactiveLeeway time.Duration
	// RetainOnTransient keeps the session populated after a transient
	// renewal failure instead of clearing it. Off by default: the
	// conservative policy forces re-authentication rather than operating
	// with a degraded access credential.
	RetainOnTransient bool
}

// NotifyConfig shapes the session-expired notification.
type NotifyConfig struct {
	LoginPath      string
	ExpiredMessage string
	RedirectDelay  time.Duration
	VerifyDelay    time.Duration
}

// OpsConfig carries the operations-console allow-list.
type OpsConfig struct {
	// PrivilegedUsernames gates the ops console. Matching is
	// case-insensitive and whitespace-trimmed.
	PrivilegedUsernames []string
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			Timeout:   30 * time.Second,
			UserAgent: "costscope-go",
		},
		Storage: StorageConfig{
			Backend:      "file",
			Namespace:    "costscope",
			MirrorBuffer: 16,
		},
		Renewal: RenewalConfig{
			ProactiveLeeway:   30 * time.Second,
			RetainOnTransient: false,
		},
		Notify: NotifyConfig{
			LoginPath:      "/login",
			ExpiredMessage: "Your session has expired, please log in again.",
			RedirectDelay:  0,
			VerifyDelay:    2 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Ops.PrivilegedUsernames = append([]string(nil), cfg.Ops.PrivilegedUsernames...)
	return out
}

// Validate rejects configurations the engine cannot run with. Requirements
// that depend on what the Builder was given (an API client versus a BaseURL,
// an explicit store versus a backend selection) are checked in Build.
func (c *Config) Validate() error {
	if c.API.Timeout < 0 {
		return errors.New("API Timeout must be >= 0")
	}

	switch c.Storage.Backend {
	case "file", "redis":
		// valid
	default:
		return errors.New("Storage Backend must be 'file' or 'redis'")
	}
	if c.Storage.MirrorBuffer <= 0 {
		return errors.New("Storage MirrorBuffer must be > 0")
	}

	if c.Renewal.ProactiveLeeway < 0 {
		return errors.New("Renewal ProactiveLeeway must be >= 0")
	}

	if c.Notify.LoginPath == "" {
		return errors.New("Notify LoginPath is required")
	}
	if c.Notify.RedirectDelay < 0 || c.Notify.VerifyDelay < 0 {
		return errors.New("Notify delays must be >= 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

// fileConfig is the YAML shape of Config. Durations are strings in
// time.ParseDuration syntax.
type fileConfig struct {
	API struct {
		BaseURL   string `yaml:"base_url"`
		Timeout   string `yaml:"timeout"`
		UserAgent string `yaml:"user_agent"`
	} `yaml:"api"`
	Storage struct {
		Backend      string `yaml:"backend"`
		FilePath     string `yaml:"file_path"`
		Namespace    string `yaml:"namespace"`
		MirrorBuffer int    `yaml:"mirror_buffer"`
	} `yaml:"storage"`
	Renewal struct {
		ProactiveLeeway   string `yaml:"proactive_leeway"`
		RetainOnTransient bool   `yaml:"retain_on_transient"`
	} `yaml:"renewal"`
	Notify struct {
		LoginPath      string `yaml:"login_path"`
		ExpiredMessage string `yaml:"expired_message"`
		RedirectDelay  string `yaml:"redirect_delay"`
		VerifyDelay    string `yaml:"verify_delay"`
	} `yaml:"notify"`
	Ops struct {
		PrivilegedUsernames []string `yaml:"privileged_usernames"`
	} `yaml:"ops"`
	Audit struct {
		Enabled    bool `yaml:"enabled"`
		BufferSize int  `yaml:"buffer_size"`
		DropIfFull bool `yaml:"drop_if_full"`
	} `yaml:"audit"`
	Metrics struct {
		Enabled                 bool `yaml:"enabled"`
		EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
	} `yaml:"metrics"`
}

// LoadConfig reads a YAML configuration file over the defaults. Absent keys
// keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}

	if fc.API.BaseURL != "" {
		cfg.API.BaseURL = fc.API.BaseURL
	}
	if fc.API.UserAgent != "" {
		cfg.API.UserAgent = fc.API.UserAgent
	}
	if err := setDuration(&cfg.API.Timeout, fc.API.Timeout); err != nil {
		return cfg, fmt.Errorf("api.timeout: %w", err)
	}

	if fc.Storage.Backend != "" {
		cfg.Storage.Backend = fc.Storage.Backend
	}
	if fc.Storage.FilePath != "" {
		cfg.Storage.FilePath = fc.Storage.FilePath
	}
	if fc.Storage.Namespace != "" {
		cfg.Storage.Namespace = fc.Storage.Namespace
	}
	if fc.Storage.MirrorBuffer > 0 {
		cfg.Storage.MirrorBuffer = fc.Storage.MirrorBuffer
	}

	if err := setDuration(&cfg.Renewal.ProactiveLeeway, fc.Renewal.ProactiveLeeway); err != nil {
		return cfg, fmt.Errorf("renewal.proactive_leeway: %w", err)
	}
	cfg.Renewal.RetainOnTransient = fc.Renewal.RetainOnTransient

	if fc.Notify.LoginPath != "" {
		cfg.Notify.LoginPath = fc.Notify.LoginPath
	}
	if fc.Notify.ExpiredMessage != "" {
		cfg.Notify.ExpiredMessage = fc.Notify.ExpiredMessage
	}
	if err := setDuration(&cfg.Notify.RedirectDelay, fc.Notify.RedirectDelay); err != nil {
		return cfg, fmt.Errorf("notify.redirect_delay: %w", err)
	}
	if err := setDuration(&cfg.Notify.VerifyDelay, fc.Notify.VerifyDelay); err != nil {
		return cfg, fmt.Errorf("notify.verify_delay: %w", err)
	}

	cfg.Ops.PrivilegedUsernames = fc.Ops.PrivilegedUsernames

	cfg.Audit.Enabled = fc.Audit.Enabled
	if fc.Audit.BufferSize > 0 {
		cfg.Audit.BufferSize = fc.Audit.BufferSize
	}
	cfg.Audit.DropIfFull = fc.Audit.DropIfFull

	cfg.Metrics.Enabled = fc.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = fc.Metrics.EnableLatencyHistograms

	return cfg, nil
}

func setDuration(dst *time.Duration, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
