package scrape

import (
	"context"
	"errors"
	"log"
	"net/url"
	"time"

	"github.com/dvergara/leadtap/internal/browser"
	"github.com/dvergara/leadtap/internal/model"
)

// scrollStep is how far one panel scroll advances, in pixels. Large
// enough to materialize a new page of cards, small enough to look like
// a wheel gesture.
const scrollStep = 2000

// SearchURLFunc builds the Maps search URL for a task. The default
// implementation lives in the geo package; tests substitute their own.
type SearchURLFunc func(ctx context.Context, task model.SearchTask) string

// DefaultSearchURL is the geocoder-free fallback: a plain text query.
func DefaultSearchURL(_ context.Context, task model.SearchTask) string {
	return "https://www.google.com/maps/search/" + url.QueryEscape(task.Query()) + "?hl=en"
}

// PanelConfig bounds the pagination loop.
type PanelConfig struct {
	PanelTimeout  time.Duration // wait for the results panel to render
	MaxResults    int           // cap per task, 0 = unlimited
	MaxEmptyTicks int           // consecutive no-growth scrolls before end-of-results
}

// PanelDriver paginates the listing panel for one task at a time and
// yields listing handles lazily. Handles never outlive the panel session
// that produced them.
type PanelDriver struct {
	sess    browser.Session
	limiter *RateLimiter
	urlFor  SearchURLFunc
	logger  *log.Logger
	cfg     PanelConfig
}

func NewPanelDriver(sess browser.Session, limiter *RateLimiter, urlFor SearchURLFunc, logger *log.Logger, cfg PanelConfig) *PanelDriver {
	if urlFor == nil {
		urlFor = DefaultSearchURL
	}
	if cfg.MaxEmptyTicks <= 0 {
		cfg.MaxEmptyTicks = 3
	}
	return &PanelDriver{sess: sess, limiter: limiter, urlFor: urlFor, logger: logger, cfg: cfg}
}

// Open navigates to the task's search results and waits for the panel to
// render. A panel that never renders is a UITimeoutError; the caller
// marks the task failed and moves on.
func (d *PanelDriver) Open(ctx context.Context, task model.SearchTask) (*Panel, error) {
	target := d.urlFor(ctx, task)

	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if err := d.sess.Navigate(ctx, target); err != nil {
		return nil, &UITimeoutError{Stage: "navigate", Err: err}
	}

	var handle browser.Handle
	err := browser.WaitUntil(ctx, d.cfg.PanelTimeout, func(ctx context.Context) (bool, error) {
		panels, err := d.sess.FindAll(ctx, browser.SelResultsPanel)
		if err != nil {
			return false, err
		}
		if len(panels) == 0 {
			return false, nil
		}
		handle = panels[0]
		return true, nil
	})
	if err != nil {
		if errors.Is(err, browser.ErrWaitTimeout) {
			return nil, &UITimeoutError{Stage: "panel", Err: err}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &StructureError{Selector: browser.SelResultsPanel}
	}

	d.logger.Printf("PANEL_OPEN query=%q url=%s", task.Query(), target)
	return &Panel{driver: d, panel: handle}, nil
}

// Panel is the lazy handle sequence for one open task.
type Panel struct {
	driver *PanelDriver
	panel  browser.Handle

	pos        int // next card index to yield
	emptyTicks int // consecutive scrolls without growth
}

// Yielded returns how many handles Next has produced so far.
func (p *Panel) Yielded() int { return p.pos }

// Next returns the next listing handle and its ordinal position, or
// ErrEndOfResults once the panel is exhausted or the result cap is hit.
//
// Pagination re-queries the card set each call: the panel mutates under
// us as Maps streams results in. A scroll that produces no new cards is
// an "empty tick"; loading lag and genuine exhaustion look identical
// for one tick, so only MaxEmptyTicks consecutive empties count as the
// true end.
func (p *Panel) Next(ctx context.Context) (browser.Handle, int, error) {
	d := p.driver
	if d.cfg.MaxResults > 0 && p.pos >= d.cfg.MaxResults {
		return nil, 0, ErrEndOfResults
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		cards, err := d.sess.FindAll(ctx, browser.SelResultCard)
		if err != nil {
			return nil, 0, &StructureError{Selector: browser.SelResultCard}
		}

		if p.pos < len(cards) {
			ord := p.pos
			p.pos++
			p.emptyTicks = 0
			return cards[ord], ord, nil
		}

		if p.emptyTicks >= d.cfg.MaxEmptyTicks {
			return nil, 0, ErrEndOfResults
		}

		// Scroll and give the panel one rate-limited beat to grow.
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}
		if err := d.sess.ScrollBy(ctx, p.panel, scrollStep); err != nil {
			return nil, 0, &StructureError{Selector: browser.SelResultsPanel}
		}
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}

		after, err := d.sess.FindAll(ctx, browser.SelResultCard)
		if err != nil {
			return nil, 0, &StructureError{Selector: browser.SelResultCard}
		}
		if len(after) <= len(cards) {
			p.emptyTicks++
		}
	}
}
