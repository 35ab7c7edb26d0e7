// Package browser defines the UI automation capability the scrape engine
// depends on. The engine never touches a concrete automation technology:
// production wires the chromedp-backed session, tests wire the in-memory
// arena from browsertest.
package browser

import (
	"context"
	"errors"
	"time"
)

// Handle is an opaque reference to a UI element. Handles are transient:
// they are only valid for the Session that produced them and must never
// be persisted or carried across a navigation.
type Handle any

// Session is the capability surface for driving the listing UI.
type Session interface {
	// Navigate loads url and returns once the document is committed.
	Navigate(ctx context.Context, url string) error
	// FindAll returns handles for every element matching the CSS selector,
	// in document order. An empty result is not an error.
	FindAll(ctx context.Context, selector string) ([]Handle, error)
	// Click dispatches a click on the element.
	Click(ctx context.Context, h Handle) error
	// ScrollBy scrolls the element's own scroll container by amount pixels.
	ScrollBy(ctx context.Context, h Handle, amount int) error
	// ReadText returns the element's visible text, trimmed.
	ReadText(ctx context.Context, h Handle) (string, error)
	// ReadAttr returns the named attribute, or "" when absent.
	ReadAttr(ctx context.Context, h Handle, name string) (string, error)
	// CurrentURL returns the top frame's current location.
	CurrentURL(ctx context.Context) (string, error)
	Close() error
}

// ErrWaitTimeout is returned by WaitUntil when the predicate never
// reported true within the window.
var ErrWaitTimeout = errors.New("browser: wait timed out")

// pollInterval balances readiness latency against hammering the driver.
const pollInterval = 200 * time.Millisecond

// WaitUntil polls pred until it reports true, the timeout elapses, or ctx
// is cancelled. Predicate errors abort the wait immediately; a UI that
// errors on inspection will not become ready by waiting longer.
func WaitUntil(ctx context.Context, timeout time.Duration, pred func(ctx context.Context) (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := pred(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrWaitTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
