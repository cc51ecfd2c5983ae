// Package consent dismisses cookie and privacy interstitials before an
// audit. It is a best-effort step: not finding a banner is a normal
// outcome and never fails the run.
package consent

import (
	"github.com/hazyhaar/perfaudit/perfaudit/internal/browser"
)

// Spec is an ordered list of consent-button locators. Order is priority:
// the first locator resolving to a visible element wins.
type Spec []browser.Locator

// Tags returns the distinct tags of the spec in order of first use.
func (s Spec) Tags() []string {
	seen := make(map[string]bool, len(s))
	var out []string
	for _, l := range s {
		if l.Tag == "" || seen[l.Tag] {
			continue
		}
		seen[l.Tag] = true
		out = append(out, l.Tag)
	}
	return out
}

// Filter returns the locators whose tag is in tags, keeping order.
// Untagged locators are always kept.
func (s Spec) Filter(tags ...string) Spec {
	if len(tags) == 0 {
		return append(Spec(nil), s...)
	}
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}
	var out Spec
	for _, l := range s {
		if l.Tag == "" || want[l.Tag] {
			out = append(out, l)
		}
	}
	return out
}

func text(pattern, tag string) browser.Locator {
	return browser.Locator{Selector: "button", Text: "/" + pattern + "/i", Tag: tag}
}

func css(selector, tag string) browser.Locator {
	return browser.Locator{Selector: selector, Tag: tag}
}

// DefaultSpec returns the built-in locator list: localised "accept all"
// buttons first, then attribute heuristics, then known consent frameworks,
// then loose English wording.
func DefaultSpec() Spec {
	return Spec{
		text("Accept all", "en"),
		text("Aceptar todo", "es"),
		text("Akzeptieren", "de"),
		text("Accepter tout", "fr"),
		text("Accetta tutto", "it"),
		text("すべて受け入れる", "ja"),
		text("모두 수락", "ko"),
		text("Принять все", "ru"),
		text("全部接受", "zh"),

		css(`[id*="cookie"] button`, "attr"),
		css(`[class*="cookie"] button`, "attr"),
		css(`[data-testid*="cookie"] button`, "attr"),
		css(`[role="button"][aria-label*="cookie" i]`, "attr"),
		css(`button[onclick*="cookie"]`, "attr"),

		css(".cookie-banner button", "framework"),
		css("#cookie-consent button", "framework"),
		css(".cc-btn.cc-dismiss", "framework"),
		css(".cookie-consent-button", "framework"),

		text("accept cookies?", "en"),
		text("allow cookies?", "en"),
		text("agree", "en"),
	}
}
