// Package main provides the bib CLI entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/matsen/bibmerge/internal/citekey"
	"github.com/matsen/bibmerge/internal/config"
	"github.com/matsen/bibmerge/internal/importer"
	"github.com/matsen/bibmerge/internal/reference"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	verbose     bool
	quiet       bool
	yearPolicy  string
)

func main() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(Version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bib file.bib [item...]",
	Short: "Create, combine, complete and clean BibTeX bibliographies",
	Long: `bib collects BibTeX entries from the items given as arguments into one
deduplicated bibliography with short author-year identifiers.

Items:
   refs.bib           BibTeX bibliography file
   10.1002/jrs.4278   DOI (Digital Object Identifier)
   9780553109535      ISBN (International Standard Book Number)
   'title and more'   search text (five words or more)
   fermi1932.pdf      PDF file, scanned for a DOI or search text
   -doi-add           add missing DOIs to all PREVIOUS entries
   -rename-files      rename files after the ids of all PREVIOUS entries
   -all-confirm       accept search text results from NOW ON
   -none-confirm      skip search text queries from NOW ON
   any-text-file      a list of any of the items above, by paragraph or line

Entries found by search text are kept only when confirmed, unless
-all-confirm or -none-confirm is given. The first argument MUST be a
BibTeX file: it is read if it exists and receives the whole collection.
Flags must come before it.`,
	Args:               cobra.ArbitraryArgs,
	DisableFlagParsing: true,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.DisableFlagParsing {
			return nil // the collect command parses its own flags
		}
		setup()
		return nil
	},
	RunE: runCollect,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every merge and identifier assignment")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")
	rootCmd.PersistentFlags().StringVar(&yearPolicy, "year-policy", "", "Year source for keys: year or urldate (default from config)")
	rootCmd.Version = Version
}

// setup loads .env and the global config, then installs the logger.
func setup() *config.GlobalConfig {
	_ = godotenv.Load()

	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}

	level, _ := cfg.Level()
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return cfg
}

// mustYearPolicy returns the year policy from --year-policy or the config.
func mustYearPolicy(cfg *config.GlobalConfig) citekey.YearPolicy {
	if yearPolicy != "" {
		p, err := citekey.ParseYearPolicy(yearPolicy)
		if err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
		return p
	}
	p, err := cfg.Policy()
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return p
}

// mustReadBib reads and parses a BibTeX file. Malformed entries are logged
// and skipped. A missing file is a data error unless allowMissing is set.
func mustReadBib(path string, allowMissing bool) ([]byte, []reference.Entry) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return nil, nil
		}
		exitWithError(ExitDataError, "reading %s: %v", path, err)
	}

	entries, errs := importer.ParseBibTeX(data)
	for _, err := range errs {
		slog.Warn("skipping malformed entry", "file", path, "error", err)
	}
	return data, entries
}

// printVersion writes the version line cobra would print for --version.
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "bib version %s\n", Version)
}
