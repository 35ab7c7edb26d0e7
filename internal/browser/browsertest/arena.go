// Package browsertest provides an in-memory browser.Session backed by a
// scripted listing panel. Tests configure the listings and the panel's
// scroll behavior, then run the real pagination and extraction code
// against it.
package browsertest

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvergara/leadtap/internal/browser"
)

// Listing is one scripted business card plus its detail view.
type Listing struct {
	Name    string
	Address string
	Phone   string
	Website string
	Reviews int
	MapsURL string
}

type handle struct {
	kind string // "panel", "card", "title", "address", "phone", "website", "reviews"
	idx  int    // listing index for card handles
}

// Arena implements browser.Session over scripted listings. The zero
// value is unusable; always go through New.
//
// Scroll behavior: the panel starts with PageSize cards visible and each
// effective scroll reveals PageSize more. When LagTicks > 0, that many
// scrolls per page produce no growth first, mimicking Maps' loading lag.
type Arena struct {
	Listings []Listing
	PageSize int
	LagTicks int

	// PanelAbsent makes the results panel never render.
	PanelAbsent bool
	// DetailReadyAfter delays the detail title by that many readiness
	// polls after each click.
	DetailReadyAfter int
	// FindErr, when set, fails every FindAll call.
	FindErr error

	// Observables for assertions.
	Navigations []string
	Clicks      []int

	visible    int
	lagLeft    int
	openDetail int // clicked listing index, -1 when no detail is open
	titlePolls int
}

func New(listings []Listing, pageSize int) *Arena {
	if pageSize <= 0 {
		pageSize = len(listings)
	}
	return &Arena{
		Listings:   listings,
		PageSize:   pageSize,
		openDetail: -1,
	}
}

func (a *Arena) Navigate(_ context.Context, url string) error {
	a.Navigations = append(a.Navigations, url)
	a.visible = min(a.PageSize, len(a.Listings))
	a.lagLeft = a.LagTicks
	a.openDetail = -1
	return nil
}

func (a *Arena) FindAll(_ context.Context, selector string) ([]browser.Handle, error) {
	if a.FindErr != nil {
		return nil, a.FindErr
	}
	switch selector {
	case browser.SelResultsPanel:
		if a.PanelAbsent {
			return nil, nil
		}
		return []browser.Handle{handle{kind: "panel"}}, nil

	case browser.SelResultCard:
		out := make([]browser.Handle, 0, a.visible)
		for i := 0; i < a.visible; i++ {
			out = append(out, handle{kind: "card", idx: i})
		}
		return out, nil

	case browser.SelDetailTitle:
		if a.openDetail < 0 {
			return nil, nil
		}
		a.titlePolls++
		if a.titlePolls <= a.DetailReadyAfter {
			return nil, nil
		}
		return []browser.Handle{handle{kind: "title", idx: a.openDetail}}, nil

	case browser.SelDetailAddress:
		return a.detailRow("address", func(l Listing) bool { return l.Address != "" }), nil
	case browser.SelDetailPhone:
		return a.detailRow("phone", func(l Listing) bool { return l.Phone != "" }), nil
	case browser.SelDetailWebsite:
		return a.detailRow("website", func(l Listing) bool { return l.Website != "" }), nil
	case browser.SelDetailReviews:
		return a.detailRow("reviews", func(l Listing) bool { return l.Reviews > 0 }), nil
	}
	return nil, nil
}

func (a *Arena) detailRow(kind string, present func(Listing) bool) []browser.Handle {
	if a.openDetail < 0 || !present(a.Listings[a.openDetail]) {
		return nil
	}
	return []browser.Handle{handle{kind: kind, idx: a.openDetail}}
}

func (a *Arena) Click(_ context.Context, h browser.Handle) error {
	ah, ok := h.(handle)
	if !ok || ah.kind != "card" {
		return fmt.Errorf("browsertest: click on non-card handle %v", h)
	}
	a.Clicks = append(a.Clicks, ah.idx)
	a.openDetail = ah.idx
	a.titlePolls = 0
	return nil
}

func (a *Arena) ScrollBy(_ context.Context, h browser.Handle, _ int) error {
	ah, ok := h.(handle)
	if !ok || ah.kind != "panel" {
		return fmt.Errorf("browsertest: scroll on non-panel handle %v", h)
	}
	if a.visible >= len(a.Listings) {
		return nil
	}
	if a.lagLeft > 0 {
		a.lagLeft--
		return nil
	}
	a.visible = min(a.visible+a.PageSize, len(a.Listings))
	a.lagLeft = a.LagTicks
	return nil
}

func (a *Arena) ReadText(_ context.Context, h browser.Handle) (string, error) {
	ah, ok := h.(handle)
	if !ok {
		return "", fmt.Errorf("browsertest: foreign handle %v", h)
	}
	l := a.Listings[ah.idx]
	switch ah.kind {
	case "title":
		return l.Name, nil
	case "reviews":
		return fmt.Sprintf("(%d)", l.Reviews), nil
	}
	return "", nil
}

func (a *Arena) ReadAttr(_ context.Context, h browser.Handle, name string) (string, error) {
	ah, ok := h.(handle)
	if !ok {
		return "", fmt.Errorf("browsertest: foreign handle %v", h)
	}
	if name != browser.AttrAriaLabel {
		return "", nil
	}
	l := a.Listings[ah.idx]
	switch ah.kind {
	case "address":
		return browser.AriaAddressPrefix + " " + l.Address, nil
	case "phone":
		return browser.AriaPhonePrefix + " " + l.Phone, nil
	case "website":
		return browser.AriaWebsitePrefix + " " + strings.TrimPrefix(l.Website, "https://"), nil
	case "reviews":
		return fmt.Sprintf("%d reviews", l.Reviews), nil
	}
	return "", nil
}

func (a *Arena) CurrentURL(_ context.Context) (string, error) {
	if a.openDetail >= 0 {
		return a.Listings[a.openDetail].MapsURL, nil
	}
	if len(a.Navigations) == 0 {
		return "", nil
	}
	return a.Navigations[len(a.Navigations)-1], nil
}

func (a *Arena) Close() error { return nil }
