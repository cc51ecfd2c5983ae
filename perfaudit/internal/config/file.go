// Package config handles perfaudit configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/perfaudit/perfaudit/internal/browser"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/lighthouse"
)

// Config is the top-level perfaudit configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Consent ConsentConfig `yaml:"consent"`
	Audit   AuditConfig   `yaml:"audit"`
	Reports ReportsConfig `yaml:"reports"`
	History HistoryConfig `yaml:"history"`
	Server  ServerConfig  `yaml:"server"`
}

// BrowserConfig controls the Chrome side of a session.
type BrowserConfig struct {
	Bin           string            `yaml:"bin"`
	Remote        string            `yaml:"remote"`
	Port          int               `yaml:"port"`
	Headful       bool              `yaml:"headful"`
	Incognito     bool              `yaml:"incognito"`
	Stealth       bool              `yaml:"stealth"`
	Flags         map[string]string `yaml:"flags"`
	LaunchTimeout time.Duration     `yaml:"launch_timeout"`
}

// ConsentConfig controls banner dismissal. Locators replace the built-in
// list when set; Tags filters whichever list is used.
type ConsentConfig struct {
	Disabled bool              `yaml:"disabled"`
	Timeout  time.Duration     `yaml:"timeout"`
	Settle   time.Duration     `yaml:"settle"`
	Tags     []string          `yaml:"tags"`
	Locators []browser.Locator `yaml:"locators"`
}

// AuditConfig controls navigation and the Lighthouse collaborator.
type AuditConfig struct {
	Categories        []string           `yaml:"categories"`
	SkipAudits        []string           `yaml:"skip_audits"`
	Thresholds        map[string]float64 `yaml:"thresholds"`
	Policy            string             `yaml:"policy"` // tolerant | strict
	NavigationTimeout time.Duration      `yaml:"navigation_timeout"`
	AuditTimeout      time.Duration      `yaml:"audit_timeout"`
	MaxWaitForLoad    time.Duration      `yaml:"max_wait_for_load"`
	ContentReady      ContentReadyConfig `yaml:"content_ready"`
	Lighthouse        LighthouseConfig   `yaml:"lighthouse"`
}

// ContentReadyConfig lists the selectors whose visibility marks the page
// as rendered. Disabled skips the wait.
type ContentReadyConfig struct {
	Disabled  bool          `yaml:"disabled"`
	Selectors []string      `yaml:"selectors"`
	Timeout   time.Duration `yaml:"timeout"`
}

// LighthouseConfig locates the lighthouse CLI.
type LighthouseConfig struct {
	Bin   string   `yaml:"bin"`
	Flags []string `yaml:"flags"`
}

// ReportsConfig controls artefact persistence.
type ReportsConfig struct {
	Dir            string   `yaml:"dir"`
	Formats        []string `yaml:"formats"`
	Webhook        string   `yaml:"webhook"`
	WebhookRetries int      `yaml:"webhook_retries"`
}

// HistoryConfig locates the run log. Disabled turns it off.
type HistoryConfig struct {
	Disabled bool   `yaml:"disabled"`
	Path     string `yaml:"path"`
}

// ServerConfig controls `perfaudit serve`. RateLimit bounds audit
// submissions per client IP per RateWindow; 0 disables it.
type ServerConfig struct {
	Addr       string        `yaml:"addr"`
	MaxBody    int64         `yaml:"max_body"`
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used without a file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Browser.Port <= 0 {
		c.Browser.Port = browser.DefaultPort
	}
	if c.Browser.LaunchTimeout <= 0 {
		c.Browser.LaunchTimeout = 30 * time.Second
	}

	if c.Consent.Timeout <= 0 {
		c.Consent.Timeout = 5 * time.Second
	}
	if c.Consent.Settle <= 0 {
		c.Consent.Settle = time.Second
	}

	if len(c.Audit.Categories) == 0 {
		c.Audit.Categories = append([]string(nil), lighthouse.DefaultCategories...)
	}
	if c.Audit.SkipAudits == nil {
		c.Audit.SkipAudits = []string{"is-on-https", "uses-http2"}
	}
	if c.Audit.Thresholds == nil {
		c.Audit.Thresholds = map[string]float64{"performance": 10}
	}
	if c.Audit.Policy == "" {
		c.Audit.Policy = string(lighthouse.PolicyTolerant)
	}
	if c.Audit.NavigationTimeout <= 0 {
		c.Audit.NavigationTimeout = lighthouse.DefaultNavigationTimeout
	}
	if c.Audit.AuditTimeout <= 0 {
		c.Audit.AuditTimeout = lighthouse.DefaultAuditTimeout
	}
	if c.Audit.ContentReady.Timeout <= 0 {
		c.Audit.ContentReady.Timeout = lighthouse.DefaultContentReadyTimeout
	}
	if c.Audit.Lighthouse.Bin == "" {
		c.Audit.Lighthouse.Bin = "lighthouse"
	}

	if c.Reports.Dir == "" {
		c.Reports.Dir = "reports/lighthouse"
	}
	if len(c.Reports.Formats) == 0 {
		c.Reports.Formats = []string{"json", "html"}
	}

	if c.History.Path == "" {
		c.History.Path = "reports/perfaudit.db"
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxBody <= 0 {
		c.Server.MaxBody = 64 << 10
	}
	if c.Server.RateWindow <= 0 {
		c.Server.RateWindow = time.Minute
	}
}

// Validate rejects values no run could use.
func (c *Config) Validate() error {
	if _, err := lighthouse.ParsePolicy(c.Audit.Policy); err != nil {
		return fmt.Errorf("config: audit.policy: %w", err)
	}
	for cat, want := range c.Audit.Thresholds {
		if want < 0 || want > 100 {
			return fmt.Errorf("config: audit.thresholds.%s=%v outside 0-100", cat, want)
		}
	}
	for _, f := range c.Reports.Formats {
		if f != "json" && f != "html" {
			return fmt.Errorf("config: reports.formats: unknown format %q", f)
		}
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("config: server.rate_limit must be >= 0")
	}
	for i, l := range c.Consent.Locators {
		if l.Selector == "" {
			return fmt.Errorf("config: consent.locators[%d]: selector is required", i)
		}
	}
	return nil
}
