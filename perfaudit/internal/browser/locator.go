package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultPoll is the interval between visibility sweeps.
const DefaultPoll = 100 * time.Millisecond

// ErrNotVisible is returned by WaitVisible when no candidate became
// visible before the context deadline.
var ErrNotVisible = errors.New("browser: no candidate became visible")

// Locator identifies an element by CSS selector and, optionally, by a
// text match on that element. Text is a JavaScript regular expression;
// the "/pattern/flags" form is accepted for case-insensitive matches.
type Locator struct {
	Selector string `yaml:"selector" json:"selector"`
	Text     string `yaml:"text,omitempty" json:"text,omitempty"`
	// Tag labels the locator, e.g. the language or market it targets.
	Tag string `yaml:"tag,omitempty" json:"tag,omitempty"`
}

func (l Locator) String() string {
	if l.Text == "" {
		return l.Selector
	}
	return fmt.Sprintf("%s~%s", l.Selector, l.Text)
}

// CSS returns plain selector locators.
func CSS(selectors ...string) []Locator {
	out := make([]Locator, len(selectors))
	for i, s := range selectors {
		out[i] = Locator{Selector: s}
	}
	return out
}

// WaitVisible sweeps locs in order until one of them resolves to a visible
// element, and returns its index. Earlier locators win when several are
// visible in the same sweep. The sweep repeats every poll until ctx is
// done.
func WaitVisible(ctx context.Context, page Page, locs []Locator, poll time.Duration) (int, Element, error) {
	if len(locs) == 0 {
		return -1, nil, ErrNotVisible
	}
	if poll <= 0 {
		poll = DefaultPoll
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		for i, loc := range locs {
			if ctx.Err() != nil {
				break
			}
			el, err := page.Find(ctx, loc)
			if err != nil {
				continue
			}
			if ok, err := el.Visible(ctx); err == nil && ok {
				return i, el, nil
			}
		}

		select {
		case <-ctx.Done():
			return -1, nil, fmt.Errorf("%w: %w", ErrNotVisible, ctx.Err())
		case <-ticker.C:
		}
	}
}
