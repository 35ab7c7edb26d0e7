package email

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
)

// fakeFetcher serves canned bodies per URL and fails everything else.
type fakeFetcher struct {
	pages map[string][]byte
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) ([]byte, error) {
	body, ok := f.pages[rawURL]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return body, nil
}

func newDiscoverer(pages map[string][]byte) *Discoverer {
	return NewDiscoverer(&fakeFetcher{pages: pages}, log.New(io.Discard, "", 0), false)
}

func TestDiscoverMailtoBeatsTextToken(t *testing.T) {
	// A text token appears first in document order; the mailto link still
	// wins because it is a structured statement of the contact address.
	page := []byte(`<html><body>
		<p>Reach our sales team at sales@example.com any time.</p>
		<footer><a href="mailto:contact@example.com">Email us</a></footer>
	</body></html>`)

	d := newDiscoverer(map[string][]byte{"https://example.com": page})
	if got := d.Discover(context.Background(), "https://example.com"); got != "contact@example.com" {
		t.Errorf("Discover() = %q, want contact@example.com", got)
	}
}

func TestDiscoverFallsBackToTextToken(t *testing.T) {
	page := []byte(`<html><body><p>Write to hello@example.com</p></body></html>`)
	d := newDiscoverer(map[string][]byte{"https://example.com": page})
	if got := d.Discover(context.Background(), "https://example.com"); got != "hello@example.com" {
		t.Errorf("Discover() = %q, want hello@example.com", got)
	}
}

func TestDiscoverFetchFailureYieldsEmpty(t *testing.T) {
	d := newDiscoverer(nil)
	if got := d.Discover(context.Background(), "https://unreachable.example"); got != "" {
		t.Errorf("Discover() = %q, want empty on fetch failure", got)
	}
}

func TestDiscoverEmptyWebsite(t *testing.T) {
	d := newDiscoverer(nil)
	if got := d.Discover(context.Background(), "   "); got != "" {
		t.Errorf("Discover() = %q, want empty", got)
	}
}

func TestDiscoverDefaultsScheme(t *testing.T) {
	page := []byte(`<a href="mailto:info@example.com">mail</a>`)
	d := newDiscoverer(map[string][]byte{"https://example.com": page})
	if got := d.Discover(context.Background(), "example.com"); got != "info@example.com" {
		t.Errorf("Discover() = %q: bare domain not defaulted to https", got)
	}
}

func TestDiscoverTriesLaterPaths(t *testing.T) {
	page := []byte(`<a href="mailto:office@example.com">mail</a>`)
	d := newDiscoverer(map[string][]byte{"https://example.com/contact": page})
	got := d.Discover(context.Background(), "https://example.com", "", "contact")
	if got != "office@example.com" {
		t.Errorf("Discover() = %q, want office@example.com from the contact page", got)
	}
}

func TestDiscoverNoEmailAnywhere(t *testing.T) {
	page := []byte(`<html><body><p>Call us instead.</p></body></html>`)
	d := newDiscoverer(map[string][]byte{"https://example.com": page})
	if got := d.Discover(context.Background(), "https://example.com"); got != "" {
		t.Errorf("Discover() = %q, want empty", got)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Info@Example.com", "info@example.com"},
		{"info@example.com?subject=Hello", "info@example.com"},
		{"info%40example.com", "info@example.com"},
		{"<info@example.com>", "info@example.com"},
		{" info@example.com, ", "info@example.com"},
		{"not-an-email", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitize(tt.raw); got != tt.want {
			t.Errorf("sanitize(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
