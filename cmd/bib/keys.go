package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/bibmerge/internal/citekey"
	"github.com/matsen/bibmerge/internal/cleanup"
)

func init() {
	rootCmd.AddCommand(keysCmd)
}

// KeyRow shows how one entry of a file is keyed.
type KeyRow struct {
	ID       string `json:"id"`
	Root     string `json:"root"`
	Identity string `json:"identity"`
}

var keysCmd = &cobra.Command{
	Use:   "keys <file.bib>",
	Short: "Show the identifier root and identity key of every entry",
	Long: `Show, for every entry of a BibTeX file in file order, its current id, the
identifier root it would be given and the identity key used to detect
duplicates. Collisions are not resolved.`,
	Args: cobra.ExactArgs(1),
	RunE: runKeys,
}

func runKeys(cmd *cobra.Command, args []string) error {
	cfg := setup()
	deriver := citekey.Deriver{YearPolicy: mustYearPolicy(cfg)}
	_, entries := mustReadBib(args[0], false)

	rows := make([]KeyRow, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		cleanup.Entry(e, args[0])
		rows = append(rows, KeyRow{
			ID:       e.ID,
			Root:     deriver.Composite(e),
			Identity: deriver.Identity(e),
		})
	}

	if humanOutput {
		for _, r := range rows {
			fmt.Printf("%-20s %-20s %s\n", r.ID, r.Root, truncateString(r.Identity, TitleMaxLen))
		}
		return nil
	}
	return outputJSON(rows)
}
