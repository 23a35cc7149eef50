package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go-triage/internal/fetcher"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url-or-text>",
	Short: "Fetch and parse every log link found in the arguments",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	results := a.fetcher.FetchFromInput(ctx, strings.Join(args, " "))
	if len(results) == 0 {
		return fmt.Errorf("no links found in input")
	}
	printFetchResults(cmd.OutOrStdout(), results)
	return nil
}

func printFetchResults(out io.Writer, results []fetcher.FetchResult) {
	for _, r := range results {
		if !r.Success {
			fmt.Fprintf(out, "✗ %s (%s): %s\n", r.Link.URL, r.Link.Type, r.Error)
			continue
		}
		doc := r.Data
		fmt.Fprintf(out, "✓ %s (%s, %s, %d bytes", r.Link.URL, r.Link.Type, doc.ContentType, doc.Size)
		if doc.Truncated {
			fmt.Fprint(out, ", truncated")
		}
		if doc.Cached {
			fmt.Fprint(out, ", cached")
		}
		fmt.Fprintln(out, ")")
		if l := doc.Parsed.Log; l != nil {
			fmt.Fprintf(out, "  %d lines, %d errors, %d warnings\n", l.TotalLines, l.ErrorCount, l.WarningCount)
		}
		if doc.Parsed.Summary != "" {
			fmt.Fprintf(out, "  %s\n", doc.Parsed.Summary)
		}
		for _, p := range doc.Parsed.KeyPoints {
			fmt.Fprintf(out, "  - %s\n", p)
		}
	}
}
