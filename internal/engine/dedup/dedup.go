// Package dedup derives stable identity keys for scraped listings and
// tracks which keys have already been persisted or emitted.
package dedup

import (
	"log"
	"net/url"
	"strings"

	"github.com/dvergara/leadtap/internal/model"
)

// Key is the normalized identity of one listing. Identical source
// listings always produce the same key, across runs.
type Key string

// KeyFor derives the key from the maps URL: lowercased scheme and host,
// path kept, query, fragment and trailing slash dropped. Maps appends
// volatile tracking parameters that would otherwise split one listing
// into many identities. When the URL is absent the fallback is
// lower(name)|lower(address) with whitespace collapsed.
func KeyFor(r model.BusinessRecord) Key {
	if k := keyFromURL(r.MapsURL); k != "" {
		return k
	}
	name := collapse(strings.ToLower(r.Name))
	addr := collapse(strings.ToLower(r.Address))
	if name == "" {
		return ""
	}
	return Key(name + "|" + addr)
}

func keyFromURL(raw string) Key {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	path := strings.TrimRight(u.EscapedPath(), "/")
	return Key(strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + path)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Deduplicator is a monotonic seen-set: once a key is marked it stays
// marked for the run. Only the pipeline runner touches it, so no
// locking.
type Deduplicator struct {
	seen   map[Key]struct{}
	logger *log.Logger
}

// New builds a Deduplicator seeded with keys already persisted in the
// sink, so reruns never re-emit existing rows.
func New(seed []Key, logger *log.Logger) *Deduplicator {
	seen := make(map[Key]struct{}, len(seed))
	for _, k := range seed {
		if k != "" {
			seen[k] = struct{}{}
		}
	}
	return &Deduplicator{seen: seen, logger: logger}
}

// IsDuplicate tests and marks in one step: the first record for a key
// claims it and later records for the same key report true. Duplicates
// are a logged non-event, not an error.
func (d *Deduplicator) IsDuplicate(r model.BusinessRecord) bool {
	k := KeyFor(r)
	if k == "" {
		// Keyless records cannot be deduplicated; let them through.
		return false
	}
	if _, ok := d.seen[k]; ok {
		d.logger.Printf("DUPLICATE key=%s name=%q", k, r.Name)
		return true
	}
	d.seen[k] = struct{}{}
	return false
}

// Len returns the size of the seen-set.
func (d *Deduplicator) Len() int { return len(d.seen) }
