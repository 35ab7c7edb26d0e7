// Package sheet defines the tabular sink the pipeline flushes batches
// into. The caller guarantees rows are already deduplicated; sinks just
// append.
package sheet

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dvergara/leadtap/internal/model"
)

// Header is the output column order, fixed so downstream consumers can
// rely on it.
var Header = []string{
	"country", "city", "category", "name", "email",
	"website", "phone", "reviews", "address", "maps_url",
}

// Sink receives flushed batches. Append returns how many rows it wrote.
type Sink interface {
	Append(ctx context.Context, tab string, rows []model.BusinessRecord) (int, error)
}

// Row flattens a record into Header order.
func Row(r model.BusinessRecord) []string {
	return []string{
		r.Country, r.City, r.Category, r.Name, r.Email,
		r.Website, r.Phone, strconv.Itoa(r.ReviewCount), r.Address, r.MapsURL,
	}
}

// CSVSink appends batches to one CSV file per tab, writing the header
// when it creates the file.
type CSVSink struct {
	dir string
}

func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{dir: dir}
}

func (s *CSVSink) Append(ctx context.Context, tab string, rows []model.BusinessRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	path := filepath.Join(s.dir, tab+".csv")

	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(Header); err != nil {
			return 0, fmt.Errorf("writing header: %w", err)
		}
	}
	for _, r := range rows {
		if err := w.Write(Row(r)); err != nil {
			return 0, fmt.Errorf("writing row %q: %w", r.Name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("flushing %s: %w", path, err)
	}
	return len(rows), nil
}

// Retry wraps a sink with bounded retries and exponential backoff. Once
// the attempts are spent the error is surfaced and the run aborts; the
// checkpoint stays at the last successful flush.
type Retry struct {
	next     Sink
	attempts int
	backoff  time.Duration
	logger   *log.Logger
}

func NewRetry(next Sink, attempts int, backoff time.Duration, logger *log.Logger) *Retry {
	if attempts <= 0 {
		attempts = 1
	}
	return &Retry{next: next, attempts: attempts, backoff: backoff, logger: logger}
}

func (r *Retry) Append(ctx context.Context, tab string, rows []model.BusinessRecord) (int, error) {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			wait := r.backoff * time.Duration(1<<uint(attempt-1))
			r.logger.Printf("SINK_RETRY attempt=%d wait=%s err=%v", attempt+1, wait, lastErr)
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(wait):
			}
		}
		n, err := r.next.Append(ctx, tab, rows)
		if err == nil {
			return n, nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("sink append failed after %d attempts: %w", r.attempts, lastErr)
}

// Multi fans a batch out to several sinks, returning the first sink's
// count. Any failure fails the flush so the checkpoint cannot advance
// past a sink that missed rows.
type Multi []Sink

func (m Multi) Append(ctx context.Context, tab string, rows []model.BusinessRecord) (int, error) {
	if len(m) == 0 {
		return 0, fmt.Errorf("no sinks configured")
	}
	var first int
	for i, s := range m {
		n, err := s.Append(ctx, tab, rows)
		if err != nil {
			return 0, err
		}
		if i == 0 {
			first = n
		}
	}
	return first, nil
}
