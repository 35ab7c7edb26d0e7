// Package geo resolves a task's region to a map viewport so searches
// open centered on the right place instead of wherever Maps guesses
// from the query text.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"

	"github.com/dvergara/leadtap/internal/model"
)

const defaultNominatimURL = "https://nominatim.openstreetmap.org/search"

type nominatimResult struct {
	BoundingBox []string `json:"boundingbox"` // [minLat, maxLat, minLng, maxLng]
	DisplayName string   `json:"display_name"`
}

// Resolver geocodes regions through Nominatim, caching per run:
// Nominatim's usage policy caps us at one request per second and the
// same region recurs across categories.
type Resolver struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
	cache   map[string]orb.Bound
}

func NewResolver(logger *log.Logger) *Resolver {
	return &Resolver{
		baseURL: defaultNominatimURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
		cache:   map[string]orb.Bound{},
	}
}

// Bound returns the region's bounding box.
func (r *Resolver) Bound(ctx context.Context, region, country string) (orb.Bound, error) {
	q := region
	if country != "" {
		q = region + ", " + country
	}
	if b, ok := r.cache[q]; ok {
		return b, nil
	}

	u := r.baseURL + "?" + url.Values{
		"q":      {q},
		"format": {"json"},
		"limit":  {"1"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return orb.Bound{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "leadtap/0.1 (business listing scraper)")

	resp, err := r.http.Do(req)
	if err != nil {
		return orb.Bound{}, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return orb.Bound{}, fmt.Errorf("geocoding returned status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return orb.Bound{}, fmt.Errorf("decoding geocoding response: %w", err)
	}
	if len(results) == 0 {
		return orb.Bound{}, fmt.Errorf("region %q not found", q)
	}
	bb := results[0].BoundingBox
	if len(bb) < 4 {
		return orb.Bound{}, fmt.Errorf("invalid bounding box from geocoder")
	}

	// Nominatim returns [minLat, maxLat, minLng, maxLng] as strings.
	minLat, _ := strconv.ParseFloat(bb[0], 64)
	maxLat, _ := strconv.ParseFloat(bb[1], 64)
	minLng, _ := strconv.ParseFloat(bb[2], 64)
	maxLng, _ := strconv.ParseFloat(bb[3], 64)

	bound := orb.Bound{
		Min: orb.Point{minLng, minLat},
		Max: orb.Point{maxLng, maxLat},
	}
	r.cache[q] = bound
	return bound, nil
}

// SearchURL builds the Maps search URL for a task. When the region
// geocodes, the URL pins the viewport to the region's center at a zoom
// derived from its span; otherwise it degrades to a plain text query and
// lets Maps do the placing.
func (r *Resolver) SearchURL(ctx context.Context, task model.SearchTask) string {
	bound, err := r.Bound(ctx, task.Region, task.Country)
	if err != nil {
		r.logger.Printf("GEOCODE_FAIL region=%q country=%q err=%v", task.Region, task.Country, err)
		return "https://www.google.com/maps/search/" + url.QueryEscape(task.Query()) + "?hl=en"
	}

	center := bound.Center()
	zoom := ZoomForBound(bound)
	return fmt.Sprintf("https://www.google.com/maps/search/%s/@%f,%f,%dz?hl=en",
		url.QueryEscape(task.Category), center.Lat(), center.Lon(), zoom)
}

// ZoomForBound picks the zoom whose viewport roughly covers the bound's
// larger axis: one tile spans 360/2^z degrees, and a screen is a few
// tiles wide.
func ZoomForBound(b orb.Bound) int {
	span := math.Max(b.Max.Lat()-b.Min.Lat(), b.Max.Lon()-b.Min.Lon())
	if span <= 0 {
		return 13
	}
	// Aim for the bound filling ~4 tiles across.
	zoom := int(math.Floor(math.Log2(360.0 * 4.0 / span)))
	if zoom < 4 {
		zoom = 4
	}
	if zoom > 16 {
		zoom = 16
	}
	return zoom
}
