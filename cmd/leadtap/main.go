package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "run":
			exit(runScrape(os.Args[2:]))
			return
		case "export":
			exit(runExport(os.Args[2:]))
			return
		case "version":
			fmt.Println("leadtap " + version)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}
	printUsage()
	os.Exit(2)
}

func exit(err error) {
	switch {
	case err == nil:
		os.Exit(0)
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "interrupted")
		os.Exit(130)
	case errors.Is(err, errTasksFailed):
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `leadtap - maps listing lead scraper

Usage:
  leadtap run [flags]      Scrape the tasks file into the local mirror
  leadtap export [flags]   Export the mirror to CSV
  leadtap version          Show version

Run 'leadtap run --help' or 'leadtap export --help' for flags.
`)
}
