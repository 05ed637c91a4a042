// Package pdf scans PDF documents for a DOI or identifying text, and shows
// them in an external viewer.
package pdf

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/matsen/bibmerge/internal/cleanup"
)

// MinTextLength is the shortest extracted text worth using.
const MinTextLength = 10

// Scan is what a PDF yields for identification: a DOI when one appears in
// the scanned pages, otherwise search text from their start.
type Scan struct {
	DOI        string
	SearchText string
}

// Empty reports whether the scan found nothing usable.
func (s Scan) Empty() bool {
	return s.DOI == "" && s.SearchText == ""
}

// ScanFile extracts text from the first pages of a PDF and returns the
// first DOI in it, or else its first queryChars characters with whitespace
// collapsed. Files with almost no text yield an empty Scan.
func ScanFile(filePath string, pages, queryChars int) (Scan, error) {
	text, err := ExtractText(filePath, pages)
	if err != nil {
		return Scan{}, err
	}
	return ScanText(text, queryChars), nil
}

// ScanText applies the ScanFile rules to already extracted text.
func ScanText(text string, queryChars int) Scan {
	if len(text) < MinTextLength {
		return Scan{}
	}
	if doi := cleanup.FindDOI(text); doi != "" {
		return Scan{DOI: doi}
	}
	return Scan{SearchText: SearchText(text, queryChars)}
}

// SearchText collapses whitespace and keeps at most n characters.
func SearchText(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if n <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes)
}

// ExtractText extracts all text from the first maxPages pages of a PDF.
// A non-positive maxPages reads every page.
func ExtractText(filePath string, maxPages int) (string, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", filePath, err)
	}
	defer f.Close()

	if maxPages <= 0 || maxPages > r.NumPage() {
		maxPages = r.NumPage()
	}

	var builder strings.Builder
	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue // unreadable pages are skipped
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}

	return builder.String(), nil
}
