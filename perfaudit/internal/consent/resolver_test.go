package consent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hazyhaar/perfaudit/perfaudit/internal/browser"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/browser/browsertest"
)

func newTestResolver() *Resolver {
	return NewResolver(Config{Settle: 10 * time.Millisecond, Poll: 5 * time.Millisecond})
}

func TestDismiss_ClicksFirstVisibleByPriority(t *testing.T) {
	spec := DefaultSpec()
	page := browsertest.NewPage()
	english := page.Add(spec[0], browsertest.Visible())
	banner := page.Add(browser.Locator{Selector: ".cookie-banner button"}, browsertest.Visible())

	if !newTestResolver().Dismiss(context.Background(), page, spec, time.Second) {
		t.Fatal("expected banner to be dismissed")
	}
	if english.Clicks() != 1 {
		t.Fatalf("english button clicks: got %d, want 1", english.Clicks())
	}
	if banner.Clicks() != 0 {
		t.Fatalf("lower priority button clicked %d times", banner.Clicks())
	}
}

func TestDismiss_FallsBackToAttributeLocator(t *testing.T) {
	spec := DefaultSpec()
	page := browsertest.NewPage()
	page.Add(spec[0], browsertest.Hidden())
	attr := page.Add(browser.Locator{Selector: `[id*="cookie"] button`}, browsertest.Visible())

	if !newTestResolver().Dismiss(context.Background(), page, spec, time.Second) {
		t.Fatal("expected banner to be dismissed")
	}
	if attr.Clicks() != 1 {
		t.Fatalf("attribute button clicks: got %d", attr.Clicks())
	}
}

func TestDismiss_NoBanner(t *testing.T) {
	page := browsertest.NewPage()

	start := time.Now()
	if newTestResolver().Dismiss(context.Background(), page, DefaultSpec(), 50*time.Millisecond) {
		t.Fatal("nothing to dismiss, expected false")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout not honoured: %v", elapsed)
	}
}

func TestDismiss_ClickError(t *testing.T) {
	spec := Spec{{Selector: "#cookie-consent button"}}
	page := browsertest.NewPage()
	btn := page.Add(spec[0], browsertest.Visible().FailClick(errors.New("element detached")))

	if newTestResolver().Dismiss(context.Background(), page, spec, time.Second) {
		t.Fatal("click failed, expected false")
	}
	if btn.Clicks() != 1 {
		t.Fatalf("clicks: got %d, want 1 (no retry)", btn.Clicks())
	}
}

func TestDismiss_EmptySpec(t *testing.T) {
	if newTestResolver().Dismiss(context.Background(), browsertest.NewPage(), nil, time.Second) {
		t.Fatal("empty spec, expected false")
	}
}

func TestDismiss_WaitsForSettle(t *testing.T) {
	spec := Spec{{Selector: ".cc-btn.cc-dismiss"}}
	page := browsertest.NewPage()
	page.Add(spec[0], browsertest.Visible())

	r := NewResolver(Config{Settle: 80 * time.Millisecond, Poll: 5 * time.Millisecond})
	start := time.Now()
	if !r.Dismiss(context.Background(), page, spec, time.Second) {
		t.Fatal("expected dismissal")
	}
	if time.Since(start) < 80*time.Millisecond {
		t.Fatal("returned before the settle delay")
	}
}

func TestDefaultSpec_Shape(t *testing.T) {
	spec := DefaultSpec()
	if spec[0].Tag != "en" || spec[0].Text == "" {
		t.Fatalf("first locator should be the english text match: %+v", spec[0])
	}
	tags := spec.Tags()
	want := []string{"en", "es", "de", "fr", "it", "ja", "ko", "ru", "zh", "attr", "framework"}
	if len(tags) != len(want) {
		t.Fatalf("tags: got %v", tags)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("tags[%d]: got %q, want %q", i, tags[i], want[i])
		}
	}
}

func TestSpec_Filter(t *testing.T) {
	spec := Spec{
		{Selector: "a", Tag: "en"},
		{Selector: "b", Tag: "de"},
		{Selector: "c"},
		{Selector: "d", Tag: "attr"},
	}
	got := spec.Filter("de", "attr")
	if len(got) != 3 || got[0].Selector != "b" || got[1].Selector != "c" || got[2].Selector != "d" {
		t.Fatalf("filter: got %+v", got)
	}
	if all := spec.Filter(); len(all) != len(spec) {
		t.Fatalf("no tags keeps everything: got %d", len(all))
	}
}
