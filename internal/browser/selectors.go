package browser

// Central place for the Maps DOM selectors. When Google shuffles the
// markup, this file is what breaks and what gets fixed.
const (
	// SelResultsPanel is the scrollable feed holding every result card.
	SelResultsPanel = `div[role="feed"]`

	// SelResultCard matches one business card inside the panel.
	SelResultCard = "div.Nv2PK"

	// SelCardTitle is the business name inside a list card.
	SelCardTitle = "div.fontHeadlineSmall"

	// SelDetailTitle is the business name header in the detail view.
	SelDetailTitle = "h1"

	// Detail rows carry stable aria-label prefixes in the English UI.
	SelDetailAddress = `button[aria-label^="Address:"]`
	SelDetailPhone   = `button[aria-label^="Phone:"]`
	SelDetailWebsite = `a[aria-label^="Website:"]`

	// SelDetailReviews is the review-count element, e.g. "(178)".
	SelDetailReviews = `span[aria-label$="reviews"]`

	// AttrAriaLabel is where the detail rows keep their values.
	AttrAriaLabel = "aria-label"

	// Aria prefixes stripped from the detail row values.
	AriaAddressPrefix = "Address:"
	AriaPhonePrefix   = "Phone:"
	AriaWebsitePrefix = "Website:"
)
