package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/bibmerge/internal/cleanup"
	"github.com/matsen/bibmerge/internal/collect"
	"github.com/matsen/bibmerge/internal/config"
	"github.com/matsen/bibmerge/internal/confirm"
	"github.com/matsen/bibmerge/internal/crossref"
	"github.com/matsen/bibmerge/internal/dedupe"
	"github.com/matsen/bibmerge/internal/export"
	"github.com/matsen/bibmerge/internal/pdf"
)

// CollectResult is the response for a collection run.
type CollectResult struct {
	Path    string `json:"path"`
	Entries int    `json:"entries"`
	Merged  int    `json:"merged"`
	Written bool   `json:"written"`
}

// rootFlags lists the flags accepted before the first item and whether
// each takes a separate value.
var rootFlags = map[string]bool{
	"--human":       false,
	"--verbose":     false,
	"-v":            false,
	"--quiet":       false,
	"-q":            false,
	"--year-policy": true,
	"--help":        false,
	"-h":            false,
	"--version":     false,
}

// splitLeadingFlags separates the known flags at the front of args from
// the items. Items may start with '-' (commands), so parsing stops at the
// first argument that is not a known flag.
func splitLeadingFlags(args []string) (flags, items []string) {
	i := 0
	for i < len(args) {
		name, _, hasValue := strings.Cut(args[i], "=")
		takesValue, known := rootFlags[name]
		if !known || (hasValue && !takesValue) {
			break
		}
		flags = append(flags, args[i])
		i++
		if takesValue && !hasValue && i < len(args) {
			flags = append(flags, args[i])
			i++
		}
	}
	return flags, args[i:]
}

func hasFlag(flags []string, names ...string) bool {
	for _, f := range flags {
		for _, n := range names {
			if f == n {
				return true
			}
		}
	}
	return false
}

func runCollect(cmd *cobra.Command, args []string) error {
	flags, items := splitLeadingFlags(args)
	switch {
	case hasFlag(flags, "--help", "-h"):
		return cmd.Help()
	case hasFlag(flags, "--version"):
		printVersion(cmd.OutOrStdout())
		return nil
	}
	if err := cmd.PersistentFlags().Parse(flags); err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if len(items) == 0 {
		return cmd.Help()
	}

	cfg := setup()
	out := config.ExpandPath(items[0])
	if !collect.IsBibFile(out) {
		exitWithError(ExitError, "first argument must be a .bib or .bibtex file, got %q", items[0])
	}
	items[0] = out

	ix := dedupe.New(
		dedupe.WithYearPolicy(mustYearPolicy(cfg)),
		dedupe.WithCleanup(cleanup.Entry),
	)
	client := crossref.NewClient(
		crossref.WithMailto(cfg.Mailto),
		crossref.WithTimeout(cfg.Timeout),
		crossref.WithRateLimit(cfg.RateLimit),
	)
	prompter := confirm.NewPrompter(os.Stdin, os.Stderr, confirm.WithViewer(pdf.NewViewer(cfg.PDFReader)))
	collector := collect.New(ix, client,
		collect.WithConfirmer(prompter),
		collect.WithPDFLimits(cfg.PDFPages, cfg.QueryChars),
	)

	if err := collector.Run(cmd.Context(), items); err != nil {
		switch {
		case errors.Is(err, dedupe.ErrRingExhausted):
			exitWithError(ExitRingExhausted, "%v (nothing written)", err)
		case errors.Is(err, context.Canceled):
			exitWithError(ExitError, "interrupted (nothing written)")
		default:
			exitWithError(ExitError, "%v (nothing written)", err)
		}
	}

	result := CollectResult{Path: out, Entries: ix.Len(), Merged: ix.Absorbed()}
	if ix.Len() > 0 {
		if err := export.WriteFile(out, ix.Entries()); err != nil {
			exitWithError(ExitError, "writing %s: %v", out, err)
		}
		result.Written = true
	}

	if humanOutput {
		if result.Written {
			fmt.Printf("Wrote %d entries to %s (%d merged)\n", result.Entries, out, result.Merged)
		} else {
			fmt.Printf("No entries collected, %s left untouched\n", out)
		}
		return nil
	}
	return outputJSON(result)
}
