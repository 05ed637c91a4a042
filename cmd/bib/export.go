package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/bibmerge/internal/storage"
)

var (
	exportFormat string
	exportOutput string
)

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "jsonl", "Output format: jsonl or parquet")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (required)")
	_ = exportCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(exportCmd)
}

// ExportResult is the response for the export command.
type ExportResult struct {
	Path    string `json:"path"`
	Format  string `json:"format"`
	Entries int    `json:"entries"`
}

var exportCmd = &cobra.Command{
	Use:   "export <file.bib>",
	Short: "Export a bibliography as JSONL or Parquet",
	Long: `Export the entries of a BibTeX file, in file order, as one JSON object per
line or as a Parquet table with one row per entry.

Examples:
  bib export refs.bib -o refs.jsonl
  bib export refs.bib --format parquet -o refs.parquet`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	setup()
	_, entries := mustReadBib(args[0], false)

	var err error
	switch exportFormat {
	case "jsonl":
		err = storage.WriteAll(exportOutput, entries)
	case "parquet":
		err = storage.WriteParquet(exportOutput, entries)
	default:
		exitWithError(ExitError, "unknown format %q (valid: jsonl, parquet)", exportFormat)
	}
	if err != nil {
		exitWithError(ExitError, "exporting to %s: %v", exportOutput, err)
	}

	if humanOutput {
		fmt.Printf("Exported %d entries to %s\n", len(entries), exportOutput)
		return nil
	}
	return outputJSON(ExportResult{Path: exportOutput, Format: exportFormat, Entries: len(entries)})
}
