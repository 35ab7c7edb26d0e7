package sheet

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvergara/leadtap/internal/model"
)

func sampleRows() []model.BusinessRecord {
	return []model.BusinessRecord{
		{Country: "US", City: "Tampa, FL", Category: "Legal Services",
			Name: "Tampa Law Group", Email: "info@tampalaw.example",
			Website: "tampalaw.example", Phone: "+1 813-555-0101",
			ReviewCount: 178, Address: "500 E Kennedy Blvd",
			MapsURL: "https://maps.example/place/tampa-law"},
		{Country: "US", City: "Tampa, FL", Category: "Legal Services",
			Name: "Bay Counsel", MapsURL: "https://maps.example/place/bay-counsel"},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func TestCSVSinkWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVSink(dir)
	ctx := context.Background()

	n, err := s.Append(ctx, "Scraped", sampleRows())
	if err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if n != 2 {
		t.Errorf("Append() = %d, want 2", n)
	}
	if _, err := s.Append(ctx, "Scraped", sampleRows()[:1]); err != nil {
		t.Fatalf("second Append() error: %v", err)
	}

	records := readCSV(t, filepath.Join(dir, "Scraped.csv"))
	if len(records) != 4 {
		t.Fatalf("file has %d lines, want header + 3 rows", len(records))
	}
	for i, col := range Header {
		if records[0][i] != col {
			t.Fatalf("header = %v, want %v", records[0], Header)
		}
	}
	if records[1][3] != "Tampa Law Group" || records[1][7] != "178" {
		t.Errorf("row = %v", records[1])
	}
}

func TestCSVSinkSeparatesTabs(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVSink(dir)
	ctx := context.Background()

	if _, err := s.Append(ctx, "Alpha", sampleRows()[:1]); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Append(ctx, "Beta", sampleRows()[1:]); err != nil {
		t.Fatal(err)
	}
	if len(readCSV(t, filepath.Join(dir, "Alpha.csv"))) != 2 {
		t.Error("Alpha tab wrong size")
	}
	if len(readCSV(t, filepath.Join(dir, "Beta.csv"))) != 2 {
		t.Error("Beta tab wrong size")
	}
}

// flakySink fails a fixed number of Appends before succeeding.
type flakySink struct {
	failures int
	calls    int
}

func (f *flakySink) Append(_ context.Context, _ string, rows []model.BusinessRecord) (int, error) {
	f.calls++
	if f.calls <= f.failures {
		return 0, errors.New("transient quota error")
	}
	return len(rows), nil
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	inner := &flakySink{failures: 2}
	r := NewRetry(inner, 3, time.Millisecond, log.New(io.Discard, "", 0))

	n, err := r.Append(context.Background(), "Scraped", sampleRows())
	if err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if n != 2 {
		t.Errorf("Append() = %d, want 2", n)
	}
	if inner.calls != 3 {
		t.Errorf("inner called %d times, want 3", inner.calls)
	}
}

func TestRetryGivesUp(t *testing.T) {
	inner := &flakySink{failures: 100}
	r := NewRetry(inner, 3, time.Millisecond, log.New(io.Discard, "", 0))

	if _, err := r.Append(context.Background(), "Scraped", sampleRows()); err == nil {
		t.Fatal("Append() = nil, want error after attempts exhausted")
	}
	if inner.calls != 3 {
		t.Errorf("inner called %d times, want exactly 3", inner.calls)
	}
}

func TestRetryStopsOnCancellation(t *testing.T) {
	inner := &flakySink{failures: 100}
	r := NewRetry(inner, 5, time.Hour, log.New(io.Discard, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Append(ctx, "Scraped", sampleRows()); !errors.Is(err, context.Canceled) {
		t.Errorf("Append() = %v, want context.Canceled", err)
	}
}

func TestMultiFansOut(t *testing.T) {
	dir := t.TempDir()
	a := &flakySink{}
	b := NewCSVSink(dir)
	m := Multi{a, b}

	n, err := m.Append(context.Background(), "Scraped", sampleRows())
	if err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if n != 2 {
		t.Errorf("Append() = %d, want first sink's count", n)
	}
	if len(readCSV(t, filepath.Join(dir, "Scraped.csv"))) != 3 {
		t.Error("second sink did not receive the batch")
	}
}

func TestMultiFailsWhole(t *testing.T) {
	m := Multi{&flakySink{}, &flakySink{failures: 100}}
	if _, err := m.Append(context.Background(), "Scraped", sampleRows()); err == nil {
		t.Error("Append() = nil, want any sink failure to fail the flush")
	}
}
