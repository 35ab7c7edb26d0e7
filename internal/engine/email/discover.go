// Package email performs best-effort contact discovery on business
// websites. Discovery never fails the surrounding pipeline: every fetch
// or parse problem degrades to an empty result.
package email

import (
	"bytes"
	"context"
	"log"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/miekg/dns"
)

var emailRe = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)

// Discoverer fetches candidate pages of a business website and extracts
// one contact email.
type Discoverer struct {
	fetcher  Fetcher
	logger   *log.Logger
	verifyMX bool
}

func NewDiscoverer(fetcher Fetcher, logger *log.Logger, verifyMX bool) *Discoverer {
	return &Discoverer{fetcher: fetcher, logger: logger, verifyMX: verifyMX}
}

// Discover fetches the site's candidate paths (just the homepage today;
// the variadic exists so deep-crawl paths can be added without touching
// the interface) and returns the best email found, or "".
//
// Priority is deliberate: the first mailto: link anywhere in the content
// wins, and only when no mailto exists does the first email-shaped text
// token count. A structured link is an author's statement of intent; a
// loose token might be anything.
func (d *Discoverer) Discover(ctx context.Context, websiteURL string, paths ...string) string {
	websiteURL = strings.TrimSpace(websiteURL)
	if websiteURL == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(websiteURL), "http") {
		websiteURL = "https://" + strings.TrimLeft(websiteURL, "/")
	}
	if len(paths) == 0 {
		paths = []string{""}
	}

	for _, p := range paths {
		target := joinPath(websiteURL, p)
		body, err := d.fetcher.Fetch(ctx, target)
		if err != nil {
			d.logger.Printf("EMAIL_FETCH_FAIL url=%s err=%v", target, err)
			continue
		}
		if email := d.extract(body); email != "" {
			return email
		}
	}
	return ""
}

// extract applies the mailto-first rule to one fetched document.
func (d *Discoverer) extract(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		// Not HTML; fall back to scanning the raw bytes.
		return d.verify(firstToken(string(body)))
	}

	var fromMailto string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if !strings.HasPrefix(strings.ToLower(href), "mailto:") {
			return true
		}
		if em := sanitize(strings.TrimPrefix(href, "mailto:")); em != "" {
			fromMailto = em
			return false
		}
		return true
	})
	if fromMailto != "" {
		return d.verify(fromMailto)
	}

	return d.verify(firstToken(doc.Text()))
}

// verify optionally gates the result on an MX lookup of its domain.
func (d *Discoverer) verify(email string) string {
	if email == "" || !d.verifyMX {
		return email
	}
	if !hasMXRecords(email) {
		d.logger.Printf("EMAIL_NO_MX email=%s", email)
		return ""
	}
	return email
}

func firstToken(text string) string {
	return sanitize(emailRe.FindString(text))
}

// sanitize strips mailto params, wrapping punctuation and percent
// escapes, then re-validates the remainder against the email shape.
func sanitize(raw string) string {
	clean := strings.TrimSpace(raw)
	if idx := strings.Index(clean, "?"); idx != -1 {
		clean = clean[:idx]
	}
	if decoded, err := url.QueryUnescape(clean); err == nil {
		clean = decoded
	}
	clean = strings.Trim(clean, "<>()[]{}.,;:\"'` ")
	m := emailRe.FindString(clean)
	return strings.ToLower(m)
}

func joinPath(base, p string) string {
	if p == "" || p == "/" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
}

// hasMXRecords asks public resolvers whether the email's domain accepts
// mail at all. Best-effort: resolver trouble counts as "no".
func hasMXRecords(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[1] == "" {
		return false
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(parts[1]), dns.TypeMX)
	msg.RecursionDesired = true

	client := &dns.Client{Timeout: 3 * time.Second}
	for _, server := range []string{"8.8.8.8:53", "1.1.1.1:53"} {
		resp, _, err := client.Exchange(msg, server)
		if err == nil && resp != nil && resp.Rcode == dns.RcodeSuccess && len(resp.Answer) > 0 {
			return true
		}
	}
	return false
}
