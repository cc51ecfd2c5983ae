// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"sync"
	"time"

	"github.com/hazyhaar/perfaudit/perfaudit/internal/browser"
)

// Page is a scripted browser.Page. Elements are keyed by Locator.String().
type Page struct {
	mu       sync.Mutex
	nav      browser.Navigation
	navErr   error
	navDelay time.Duration
	elements map[string]*Element

	navigated []string
	finds     int
}

// NewPage returns an empty page whose navigations succeed with status 200.
func NewPage() *Page {
	return &Page{
		nav:      browser.Navigation{Status: 200, ContentLength: 1},
		elements: make(map[string]*Element),
	}
}

// SetNavigation scripts the result of the next navigations.
func (p *Page) SetNavigation(nav browser.Navigation, err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nav, p.navErr = nav, err
	return p
}

// SetNavigationDelay makes Navigate block for d, or until ctx is done.
func (p *Page) SetNavigationDelay(d time.Duration) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navDelay = d
	return p
}

// Add registers el under loc and returns el.
func (p *Page) Add(loc browser.Locator, el *Element) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[loc.String()] = el
	return el
}

// Navigated returns the URLs passed to Navigate.
func (p *Page) Navigated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigated...)
}

// Finds returns the number of Find calls.
func (p *Page) Finds() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finds
}

func (p *Page) Navigate(ctx context.Context, url string) (browser.Navigation, error) {
	p.mu.Lock()
	p.navigated = append(p.navigated, url)
	nav, err, delay := p.nav, p.navErr, p.navDelay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return browser.Navigation{}, ctx.Err()
		}
	}
	if err != nil {
		return browser.Navigation{}, err
	}
	if nav.URL == "" {
		nav.URL = url
	}
	return nav, nil
}

func (p *Page) Find(ctx context.Context, loc browser.Locator) (browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finds++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	el, ok := p.elements[loc.String()]
	if !ok {
		return nil, browser.ErrNotFound
	}
	return el, nil
}

// Element is a scripted browser.Element.
type Element struct {
	mu       sync.Mutex
	visible  bool
	showAt   time.Time
	clickErr error
	clicks   int
}

// Visible returns an element that is visible right away.
func Visible() *Element { return &Element{visible: true} }

// Hidden returns an element that never becomes visible.
func Hidden() *Element { return &Element{} }

// VisibleAfter returns an element that becomes visible after d.
func VisibleAfter(d time.Duration) *Element {
	return &Element{visible: true, showAt: time.Now().Add(d)}
}

// FailClick makes every click return err.
func (e *Element) FailClick(err error) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clickErr = err
	return e
}

// Clicks returns the number of Click calls.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return e.visible && !time.Now().Before(e.showAt), nil
}

func (e *Element) Click(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clicks++
	if e.clickErr != nil {
		return e.clickErr
	}
	return ctx.Err()
}
