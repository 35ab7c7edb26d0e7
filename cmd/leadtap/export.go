package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"

	"github.com/dvergara/leadtap/internal/config"
	"github.com/dvergara/leadtap/internal/engine/storage"
	"github.com/dvergara/leadtap/internal/sheet"
)

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dbPath := fs.String("db", config.New().DBPath, "sqlite mirror to export")
	output := fs.String("output", "leads.csv", "output CSV path (- for stdout)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: leadtap export [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  leadtap export -output leads.csv\n")
		fmt.Fprintf(os.Stderr, "  leadtap export -db ./leadtap.db -output -\n")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*dbPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	records, err := store.All(ctx)
	if err != nil {
		return err
	}

	out := os.Stdout
	if *output != "-" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", *output, err)
		}
		defer f.Close()
		out = f
	}

	w := csv.NewWriter(out)
	if err := w.Write(sheet.Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(sheet.Row(r)); err != nil {
			return fmt.Errorf("writing row %q: %w", r.Name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if *output != "-" {
		fmt.Fprintf(os.Stderr, "Exported %d records to %s\n", len(records), *output)
	}
	return nil
}
