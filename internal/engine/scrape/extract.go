package scrape

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dvergara/leadtap/internal/browser"
	"github.com/dvergara/leadtap/internal/model"
)

var reviewCountRe = regexp.MustCompile(`\d[\d,]*`)

// Extractor opens a listing's detail view and reads the field set.
type Extractor struct {
	sess    browser.Session
	limiter *RateLimiter
	logger  *log.Logger
	timeout time.Duration // detail readiness wait
}

func NewExtractor(sess browser.Session, limiter *RateLimiter, logger *log.Logger, timeout time.Duration) *Extractor {
	return &Extractor{sess: sess, limiter: limiter, logger: logger, timeout: timeout}
}

// Extract clicks the card and reads the detail view once it is actually
// populated. Readiness is a predicate on the detail title, never a
// fixed sleep, because a partial read is a silent correctness bug.
// Optional fields default to empty; a detail view that never yields the
// mandatory name and maps URL is an IncompleteError and the listing is
// skipped.
func (e *Extractor) Extract(ctx context.Context, task model.SearchTask, h browser.Handle) (model.BusinessRecord, error) {
	var rec model.BusinessRecord

	if err := e.limiter.Wait(ctx); err != nil {
		return rec, err
	}
	if err := e.sess.Click(ctx, h); err != nil {
		// Stale card handles happen when the panel re-renders under us.
		return rec, &IncompleteError{Missing: []string{"detail"}}
	}

	var name string
	err := browser.WaitUntil(ctx, e.timeout, func(ctx context.Context) (bool, error) {
		titles, err := e.sess.FindAll(ctx, browser.SelDetailTitle)
		if err != nil || len(titles) == 0 {
			return false, nil
		}
		text, err := e.sess.ReadText(ctx, titles[0])
		if err != nil || text == "" {
			return false, nil
		}
		name = text
		return true, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return rec, ctx.Err()
		}
		if errors.Is(err, browser.ErrWaitTimeout) {
			return rec, &IncompleteError{Missing: []string{"name"}}
		}
		return rec, &IncompleteError{Missing: []string{"name"}}
	}

	mapsURL, err := e.sess.CurrentURL(ctx)
	if err != nil || mapsURL == "" {
		return rec, &IncompleteError{Missing: []string{"maps_url"}}
	}

	rec = model.BusinessRecord{
		Country:     task.Country,
		City:        task.Region,
		Category:    task.Category,
		Name:        name,
		MapsURL:     mapsURL,
		Address:     e.readAria(ctx, browser.SelDetailAddress, browser.AriaAddressPrefix),
		Phone:       e.readAria(ctx, browser.SelDetailPhone, browser.AriaPhonePrefix),
		Website:     e.readAria(ctx, browser.SelDetailWebsite, browser.AriaWebsitePrefix),
		ReviewCount: e.readReviewCount(ctx),
	}
	return rec, nil
}

// readAria returns the aria-label value of the first match with prefix
// stripped, or "" when the row is absent. Optional fields only.
func (e *Extractor) readAria(ctx context.Context, selector, prefix string) string {
	handles, err := e.sess.FindAll(ctx, selector)
	if err != nil || len(handles) == 0 {
		return ""
	}
	label, err := e.sess.ReadAttr(ctx, handles[0], browser.AttrAriaLabel)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(label, prefix))
}

// readReviewCount parses the count out of blobs like "(1,178)" or
// "178 reviews". Missing or unparseable means zero.
func (e *Extractor) readReviewCount(ctx context.Context) int {
	handles, err := e.sess.FindAll(ctx, browser.SelDetailReviews)
	if err != nil || len(handles) == 0 {
		return 0
	}
	blob, err := e.sess.ReadAttr(ctx, handles[0], browser.AttrAriaLabel)
	if err != nil || blob == "" {
		blob, err = e.sess.ReadText(ctx, handles[0])
		if err != nil {
			return 0
		}
	}
	return ParseReviewCount(blob)
}

// ParseReviewCount extracts the first integer token from a review blob,
// ignoring thousands separators.
func ParseReviewCount(blob string) int {
	m := reviewCountRe.FindString(blob)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return 0
	}
	return n
}
