package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/perfaudit/perfaudit/internal/lighthouse"
)

func TestDefault(t *testing.T) {
	c := Default()

	if c.Browser.Port != 9222 || c.Browser.Headful {
		t.Errorf("browser: %+v", c.Browser)
	}
	if c.Consent.Timeout != 5*time.Second || c.Consent.Settle != time.Second {
		t.Errorf("consent: %+v", c.Consent)
	}
	if c.Audit.NavigationTimeout != 30*time.Second || c.Audit.ContentReady.Timeout != 15*time.Second {
		t.Errorf("audit timeouts: %+v", c.Audit)
	}
	if c.Audit.Thresholds["performance"] != 10 || c.Audit.Policy != "tolerant" {
		t.Errorf("thresholds/policy: %v %q", c.Audit.Thresholds, c.Audit.Policy)
	}
	if c.Reports.Dir != "reports/lighthouse" || len(c.Reports.Formats) != 2 {
		t.Errorf("reports: %+v", c.Reports)
	}
	if len(c.Audit.SkipAudits) != 2 {
		t.Errorf("skip audits: %v", c.Audit.SkipAudits)
	}
	if c.Server.Addr != ":8080" || c.Server.RateLimit != 0 || c.Server.RateWindow != time.Minute {
		t.Errorf("server: %+v", c.Server)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perfaudit.yaml")
	data := `
browser:
  remote: ws://127.0.0.1:9333/devtools/browser/abc
  port: 9333
  flags:
    no-sandbox: ""
consent:
  timeout: 2s
  tags: [en, attr]
audit:
  policy: strict
  skip_audits: []
  thresholds:
    performance: 50
    seo: 90
  navigation_timeout: 10s
  content_ready:
    selectors: ["#app"]
reports:
  dir: out
  formats: [json]
history:
  disabled: true
server:
  addr: 127.0.0.1:9000
  rate_limit: 5
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if c.Browser.Port != 9333 || c.Browser.Remote == "" {
		t.Errorf("browser: %+v", c.Browser)
	}
	if _, ok := c.Browser.Flags["no-sandbox"]; !ok {
		t.Errorf("flags: %v", c.Browser.Flags)
	}
	if c.Consent.Timeout != 2*time.Second {
		t.Errorf("consent timeout: %v", c.Consent.Timeout)
	}
	if len(c.Audit.SkipAudits) != 0 {
		t.Errorf("explicit empty skip_audits overridden: %v", c.Audit.SkipAudits)
	}
	if !c.History.Disabled || c.Reports.Dir != "out" {
		t.Errorf("history/reports: %+v %+v", c.History, c.Reports)
	}

	if c.Server.Addr != "127.0.0.1:9000" || c.Server.RateLimit != 5 {
		t.Errorf("server: %+v", c.Server)
	}
	if sc := c.Shield(); sc.RateLimit != 5 || sc.Window != time.Minute || sc.MaxBody != 64<<10 {
		t.Errorf("shield: %+v", sc)
	}

	req := c.Request("https://example.com/")
	if req.Policy != lighthouse.PolicyStrict || req.Port != 9333 || req.NavigationTimeout != 10*time.Second {
		t.Errorf("request: %+v", req)
	}
	if len(req.ContentReady) != 1 || req.ContentReady[0].Selector != "#app" {
		t.Errorf("content ready: %v", req.ContentReady)
	}
	if req.Thresholds["seo"] != 90 {
		t.Errorf("thresholds: %v", req.Thresholds)
	}

	for _, l := range c.ConsentSpec() {
		if l.Tag != "en" && l.Tag != "attr" {
			t.Fatalf("tag filter leaked %+v", l)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name, yaml, want string
	}{
		{"policy", "audit:\n  policy: lenient\n", "policy"},
		{"threshold", "audit:\n  thresholds:\n    performance: 120\n", "outside"},
		{"format", "reports:\n  formats: [pdf]\n", "format"},
		{"locator", "consent:\n  locators:\n    - text: ok\n", "selector"},
		{"rate", "server:\n  rate_limit: -1\n", "rate_limit"},
		{"yaml", "browser: [", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("got %v, want %q", err, tt.want)
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestRequest_DisabledContentReady(t *testing.T) {
	c := Default()
	c.Audit.ContentReady.Disabled = true
	req := c.Request("https://example.com/").WithDefaults()
	if req.ContentReady == nil || len(req.ContentReady) != 0 {
		t.Fatalf("content ready: %v", req.ContentReady)
	}
}

func TestConsentSpec(t *testing.T) {
	c := Default()
	if len(c.ConsentSpec()) == 0 {
		t.Fatal("default spec empty")
	}
	c.Consent.Disabled = true
	if c.ConsentSpec() != nil {
		t.Fatal("disabled consent should yield nil spec")
	}
}
