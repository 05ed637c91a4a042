package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/bibmerge/internal/cleanup"
	"github.com/matsen/bibmerge/internal/dedupe"
	"github.com/matsen/bibmerge/internal/storage"
)

func init() {
	rootCmd.AddCommand(indexCmd)
}

// IndexResult is the response for the index command.
type IndexResult struct {
	Status  string `json:"status"`
	Path    string `json:"path"`
	Entries int    `json:"entries"`
	Merged  int    `json:"merged"`
}

var indexCmd = &cobra.Command{
	Use:   "index <file.bib>",
	Short: "Build the full-text search index of a bibliography",
	Long: `Build the SQLite full-text index used by 'bib search'. The index lives
beside the BibTeX file as a hidden .db file and is rebuilt from scratch.
Entries are deduplicated first, so every indexed id is unique.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg := setup()
	path := args[0]
	data, entries := mustReadBib(path, false)

	ix := dedupe.New(
		dedupe.WithYearPolicy(mustYearPolicy(cfg)),
		dedupe.WithCleanup(cleanup.Entry),
	)
	for _, e := range entries {
		if _, err := ix.Add(e, path); err != nil {
			exitWithError(ExitRingExhausted, "%v", err)
		}
	}

	dbPath := storage.IndexPath(path)
	db, err := storage.OpenDB(dbPath)
	if err != nil {
		exitWithError(ExitError, "opening index: %v", err)
	}
	defer db.Close()

	count, err := db.Rebuild(ix.Entries(), ix.IdentityKey, storage.Fingerprint(data))
	if err != nil {
		exitWithError(ExitError, "building index: %v", err)
	}

	if humanOutput {
		fmt.Printf("Indexed %d entries from %s (%d duplicates merged)\n", count, path, ix.Absorbed())
		return nil
	}
	return outputJSON(IndexResult{Status: "complete", Path: dbPath, Entries: count, Merged: ix.Absorbed()})
}
