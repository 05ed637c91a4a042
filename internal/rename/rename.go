// Package rename renames the documents attached to entries after the
// entries' identifiers.
package rename

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/matsen/bibmerge/internal/reference"
)

// keyedName matches a basename that already starts with an identifier,
// e.g. fermi1932c_supplement.pdf.
var keyedName = regexp.MustCompile(`(?i)^([a-z]+\d{2,4}[a-z\d]?)([_-].+)$`)

// Move is one file rename.
type Move struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SplitBase splits a basename into the root to be replaced and the rest.
// A name that starts with an identifier keeps everything after it, so
// companion files such as fermi1932c_si.pdf follow their main file;
// otherwise the root is the name without its extension.
func SplitBase(base string) (root, rest string) {
	if m := keyedName.FindStringSubmatch(base); m != nil {
		return m[1], m[2]
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext), ext
}

// Entries renames every file in the directory of an entry's file that
// shares the file's root followed by '.', '_' or '-' so that it starts with
// the entry's identifier instead. The file field is updated once the file
// itself has moved. Existing files are never overwritten. Failures are collected and the
// remaining entries are still processed.
func Entries(entries []reference.Entry) ([]Move, error) {
	var moves []Move
	var errs []error

	for i := range entries {
		e := &entries[i]
		path := e.FilePath()
		if path == "" || e.ID == "" {
			continue
		}

		dir, base := filepath.Split(path)
		root, _ := SplitBase(base)
		if root == e.ID {
			continue
		}

		m, err := renameRoot(dir, root, e.ID)
		moves = append(moves, m...)
		if err != nil {
			errs = append(errs, fmt.Errorf("renaming files of %s: %w", e.ID, err))
		}
		// the file field follows the main file only
		from := filepath.Join(dir, base)
		for _, mv := range m {
			if mv.From == from {
				e.SetFilePath(mv.To)
				break
			}
		}
	}

	return moves, errors.Join(errs...)
}

// renameRoot renames the files in dir whose names start with root and a
// separator so that they start with newRoot instead.
func renameRoot(dir, root, newRoot string) ([]Move, error) {
	readDir := dir
	if readDir == "" {
		readDir = "."
	}
	files, err := os.ReadDir(readDir)
	if err != nil {
		return nil, err
	}

	var moves []Move
	var errs []error
	for _, f := range files {
		name := f.Name()
		if len(name) <= len(root) || !strings.HasPrefix(name, root) || !strings.ContainsRune("._-", rune(name[len(root)])) {
			continue
		}

		from := filepath.Join(dir, name)
		to := filepath.Join(dir, newRoot+name[len(root):])
		if _, err := os.Lstat(to); err == nil {
			errs = append(errs, fmt.Errorf("not renaming %s: %s exists", from, to))
			continue
		}
		if err := os.Rename(from, to); err != nil {
			errs = append(errs, err)
			continue
		}
		slog.Info("renamed file", "from", from, "to", to)
		moves = append(moves, Move{From: from, To: to})
	}
	return moves, errors.Join(errs...)
}
