package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// ErrNotFound is returned by Page.Find when nothing matches the locator.
var ErrNotFound = errors.New("browser: element not found")

// Navigation describes the document a page landed on.
type Navigation struct {
	URL string
	// Status is the HTTP status of the main document, 0 when unknown
	// (non-HTTP schemes, or a browser without responseStatus).
	Status int
	// ContentLength is the length of the visible body text.
	ContentLength int
}

// OK reports whether the navigation produced something worth auditing:
// a 2xx document, an unknown status, or an error page that still has
// content.
func (n Navigation) OK() bool {
	if n.Status == 0 || (n.Status >= 200 && n.Status < 300) {
		return true
	}
	return n.ContentLength > 0
}

// Page is the subset of a live browser page the pipeline uses.
type Page interface {
	// Navigate loads url and returns once DOM content is loaded. The
	// deadline of ctx is the navigation timeout.
	Navigate(ctx context.Context, url string) (Navigation, error)
	// Find returns the first element matching loc without waiting.
	Find(ctx context.Context, loc Locator) (Element, error)
}

// Element is a located DOM element.
type Element interface {
	Visible(ctx context.Context) (bool, error)
	Click(ctx context.Context) error
}

type rodPage struct {
	p *rod.Page
}

const navigationProbe = `() => {
	const nav = performance.getEntriesByType('navigation')[0];
	return {
		url: location.href,
		status: nav && nav.responseStatus ? nav.responseStatus : 0,
		content: document.body ? document.body.innerText.trim().length : 0,
	};
}`

func (r *rodPage) Navigate(ctx context.Context, url string) (Navigation, error) {
	p := r.p.Context(ctx)

	wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := p.Navigate(url); err != nil {
		return Navigation{}, fmt.Errorf("navigate %s: %w", url, err)
	}
	wait()
	if err := ctx.Err(); err != nil {
		return Navigation{}, fmt.Errorf("wait domcontentloaded %s: %w", url, err)
	}

	res, err := p.Eval(navigationProbe)
	if err != nil {
		return Navigation{}, fmt.Errorf("probe %s: %w", url, err)
	}
	return Navigation{
		URL:           res.Value.Get("url").Str(),
		Status:        res.Value.Get("status").Int(),
		ContentLength: res.Value.Get("content").Int(),
	}, nil
}

func (r *rodPage) Find(ctx context.Context, loc Locator) (Element, error) {
	p := r.p.Context(ctx)

	var (
		has bool
		el  *rod.Element
		err error
	)
	if loc.Text != "" {
		has, el, err = p.HasR(loc.Selector, loc.Text)
	} else {
		has, el, err = p.Has(loc.Selector)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", loc, err)
	}
	if !has {
		return nil, ErrNotFound
	}
	return &rodElement{el: el}, nil
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Visible(ctx context.Context) (bool, error) {
	return e.el.Context(ctx).Visible()
}

func (e *rodElement) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}
