package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/bibmerge/internal/citekey"
	"github.com/matsen/bibmerge/internal/reference"
	"github.com/matsen/bibmerge/internal/storage"
)

var (
	searchLimit int
	searchID    string
	searchDOI   string
)

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", DefaultSearchLimit, "Maximum results to return")
	searchCmd.Flags().StringVar(&searchID, "id", "", "Lookup by exact id")
	searchCmd.Flags().StringVar(&searchDOI, "doi", "", "Lookup by DOI (case-insensitive)")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <file.bib> [query]",
	Short: "Search a bibliography through its full-text index",
	Long: `Search the index built by 'bib index'. A warning is logged when the
BibTeX file changed since the index was built.

Query Syntax:
  Plain text     - Searches title, authors, year and other fields
  author:name    - Search author names only (prefix match)
  title:text     - Search title only
  year:2024      - Search year only

Without a query, all entries are listed in file order.

Examples:
  bib search refs.bib "quantum radiation"
  bib search refs.bib author:Fermi
  bib search refs.bib --doi 10.1103/RevModPhys.4.87`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSearch,
}

// mustOpenIndex opens the index of a bibliography and warns when it is
// older than the file. The caller closes the DB.
func mustOpenIndex(bibPath string) *storage.DB {
	dbPath := storage.IndexPath(bibPath)
	if _, err := os.Stat(dbPath); err != nil {
		exitWithError(ExitConfigError, "index not found for %s\n\nRun 'bib index %s' to create it.", bibPath, bibPath)
	}
	db, err := storage.OpenDB(dbPath)
	if err != nil {
		exitWithError(ExitError, "opening index: %v", err)
	}

	if data, err := os.ReadFile(bibPath); err == nil {
		if stale, err := db.IsStale(data); err == nil && stale {
			slog.Warn("index is stale, run 'bib index' to rebuild it", "file", bibPath)
		}
	}
	return db
}

func runSearch(cmd *cobra.Command, args []string) error {
	setup()
	db := mustOpenIndex(args[0])
	defer db.Close()

	var entries []reference.Entry
	var err error
	switch {
	case searchID != "" || searchDOI != "":
		var e *reference.Entry
		if searchID != "" {
			e, err = db.GetByID(searchID)
		} else {
			e, err = db.GetByIdentity(strings.ToLower(searchDOI))
		}
		if e != nil {
			entries = append(entries, *e)
		}
	case len(args) == 2:
		entries, err = searchQuery(db, args[1])
	default:
		entries, err = db.ListAll(searchLimit)
	}
	if err != nil {
		exitWithError(ExitError, "searching: %v", err)
	}

	if humanOutput {
		if len(entries) == 0 {
			fmt.Println("No entries found")
			return nil
		}
		for _, e := range entries {
			surname := citekey.SplitName(citekey.FirstAuthor(e.AuthorOrEditor())).Surname()
			fmt.Printf("%-16s %-4s %-16s %s\n", e.ID, e.Year, truncateString(surname, 16), truncateString(e.Title, TitleMaxLen))
		}
		return nil
	}
	if entries == nil {
		entries = []reference.Entry{}
	}
	return outputJSON(entries)
}

// searchQuery dispatches field-prefixed queries to SearchField.
func searchQuery(db *storage.DB, query string) ([]reference.Entry, error) {
	for _, field := range []string{"author", "title", "year"} {
		if value, ok := strings.CutPrefix(query, field+":"); ok {
			return db.SearchField(field, value, searchLimit)
		}
	}
	return db.Search(query, searchLimit)
}
