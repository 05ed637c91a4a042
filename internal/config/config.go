package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/matsen/bibmerge/internal/pdf"
)

// ValidatePDFReader checks that the reader value is valid.
func ValidatePDFReader(reader string) error {
	if reader == "" {
		return nil // Empty defaults to "system"
	}
	if slices.Contains(pdf.ValidReaders, reader) {
		return nil
	}
	return fmt.Errorf("invalid pdf_reader: %s (valid: %v)", reader, pdf.ValidReaders)
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
