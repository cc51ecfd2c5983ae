package browser_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hazyhaar/perfaudit/perfaudit/internal/browser"
	"github.com/hazyhaar/perfaudit/perfaudit/internal/browser/browsertest"
)

func TestWaitVisible_PriorityOrder(t *testing.T) {
	page := browsertest.NewPage()
	locs := []browser.Locator{
		{Selector: "#missing"},
		{Selector: "button", Text: "Accept all"},
		{Selector: ".cookie-banner button"},
	}
	page.Add(locs[2], browsertest.Visible())
	page.Add(locs[1], browsertest.Visible())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	idx, el, err := browser.WaitVisible(ctx, page, locs, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitVisible: %v", err)
	}
	if idx != 1 {
		t.Fatalf("index: got %d, want 1", idx)
	}
	if el == nil {
		t.Fatal("element is nil")
	}
}

func TestWaitVisible_SkipsHidden(t *testing.T) {
	page := browsertest.NewPage()
	locs := browser.CSS("#hidden", "body")
	page.Add(locs[0], browsertest.Hidden())
	page.Add(locs[1], browsertest.Visible())

	idx, _, err := browser.WaitVisible(context.Background(), page, locs, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitVisible: %v", err)
	}
	if idx != 1 {
		t.Fatalf("index: got %d, want 1", idx)
	}
}

func TestWaitVisible_BecomesVisible(t *testing.T) {
	start := time.Now()
	page := browsertest.NewPage()
	locs := browser.CSS("main")
	page.Add(locs[0], browsertest.VisibleAfter(50*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, _, err := browser.WaitVisible(ctx, page, locs, 10*time.Millisecond); err != nil {
		t.Fatalf("WaitVisible: %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatal("returned before the element became visible")
	}
}

func TestWaitVisible_Timeout(t *testing.T) {
	page := browsertest.NewPage()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	idx, el, err := browser.WaitVisible(ctx, page, browser.CSS("#nothing"), 10*time.Millisecond)
	if !errors.Is(err, browser.ErrNotVisible) {
		t.Fatalf("error: got %v, want ErrNotVisible", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error should wrap the deadline: %v", err)
	}
	if idx != -1 || el != nil {
		t.Fatalf("got idx=%d el=%v on timeout", idx, el)
	}
	if page.Finds() < 2 {
		t.Fatalf("expected repeated sweeps, got %d finds", page.Finds())
	}
}

func TestWaitVisible_NoLocators(t *testing.T) {
	_, _, err := browser.WaitVisible(context.Background(), browsertest.NewPage(), nil, 0)
	if !errors.Is(err, browser.ErrNotVisible) {
		t.Fatalf("error: got %v", err)
	}
}

func TestLocator_String(t *testing.T) {
	if got := (browser.Locator{Selector: "button"}).String(); got != "button" {
		t.Errorf("css: got %q", got)
	}
	if got := (browser.Locator{Selector: "button", Text: "/agree/i"}).String(); got != "button~/agree/i" {
		t.Errorf("text: got %q", got)
	}
}

func TestNavigation_OK(t *testing.T) {
	tests := []struct {
		nav  browser.Navigation
		want bool
	}{
		{browser.Navigation{Status: 200}, true},
		{browser.Navigation{Status: 204}, true},
		{browser.Navigation{Status: 0}, true},
		{browser.Navigation{Status: 404, ContentLength: 120}, true},
		{browser.Navigation{Status: 502}, false},
		{browser.Navigation{Status: 301}, false},
	}
	for _, tt := range tests {
		if got := tt.nav.OK(); got != tt.want {
			t.Errorf("%+v: got %v, want %v", tt.nav, got, tt.want)
		}
	}
}
