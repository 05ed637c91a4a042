package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/bibmerge/internal/cleanup"
	"github.com/matsen/bibmerge/internal/collect"
	"github.com/matsen/bibmerge/internal/dedupe"
	"github.com/matsen/bibmerge/internal/export"
	"github.com/matsen/bibmerge/internal/importer"
	"github.com/matsen/bibmerge/internal/reference"
	"github.com/matsen/bibmerge/internal/storage"
)

var importFormat string

func init() {
	importCmd.Flags().StringVar(&importFormat, "format", "jsonl", "Input format: jsonl, parquet or paperpile")
	rootCmd.AddCommand(importCmd)
}

// ImportResult is the response for the import command.
type ImportResult struct {
	Path     string `json:"path"`
	Imported int    `json:"imported"`
	Entries  int    `json:"entries"`
	Merged   int    `json:"merged"`
	Errors   int    `json:"errors"`
}

var importCmd = &cobra.Command{
	Use:   "import <file.bib> <input>",
	Short: "Merge entries from JSONL, Parquet or a Paperpile export into a bibliography",
	Long: `Merge the entries of an exported collection into a BibTeX file. The BibTeX
file is read first if it exists; imported entries then go through the same
deduplication as collected ones, and the merged collection is written back.

Examples:
  bib import refs.bib refs.jsonl
  bib import refs.bib refs.parquet --format parquet
  bib import refs.bib paperpile.json --format paperpile`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

func readImport(path, format string) ([]reference.Entry, []error) {
	switch format {
	case "jsonl":
		if _, err := os.Stat(path); err != nil {
			return nil, errorList(err)
		}
		entries, err := storage.ReadAll(path)
		return entries, errorList(err)
	case "parquet":
		entries, err := storage.ReadParquet(path)
		return entries, errorList(err)
	case "paperpile":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errorList(err)
		}
		return importer.ParsePaperpile(data)
	}
	exitWithError(ExitError, "unknown format %q (valid: jsonl, parquet, paperpile)", format)
	return nil, nil
}

func errorList(err error) []error {
	if err == nil {
		return nil
	}
	return []error{err}
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg := setup()
	out, input := args[0], args[1]
	if !collect.IsBibFile(out) {
		exitWithError(ExitError, "first argument must be a .bib or .bibtex file, got %q", out)
	}

	incoming, errs := readImport(input, importFormat)
	if len(incoming) == 0 && len(errs) > 0 {
		exitWithError(ExitDataError, "reading %s: %v", input, errors.Join(errs...))
	}
	for _, err := range errs {
		slog.Warn("skipping entry", "file", input, "error", err)
	}

	ix := dedupe.New(
		dedupe.WithYearPolicy(mustYearPolicy(cfg)),
		dedupe.WithCleanup(cleanup.Entry),
	)
	_, existing := mustReadBib(out, true)
	for _, batch := range []struct {
		entries []reference.Entry
		source  string
	}{{existing, out}, {incoming, input}} {
		for _, e := range batch.entries {
			if _, err := ix.Add(e, batch.source); err != nil {
				exitWithError(ExitRingExhausted, "%v (nothing written)", err)
			}
		}
	}

	if ix.Len() > 0 {
		if err := export.WriteFile(out, ix.Entries()); err != nil {
			exitWithError(ExitError, "writing %s: %v", out, err)
		}
	}

	result := ImportResult{
		Path:     out,
		Imported: len(incoming),
		Entries:  ix.Len(),
		Merged:   ix.Absorbed(),
		Errors:   len(errs),
	}
	if humanOutput {
		fmt.Printf("Imported %d entries into %s: %d total, %d merged, %d skipped\n",
			result.Imported, out, result.Entries, result.Merged, result.Errors)
		return nil
	}
	return outputJSON(result)
}
