// Package cleanup normalizes freshly parsed entries before they are keyed.
package cleanup

import (
	"regexp"
	"strings"

	"github.com/matsen/bibmerge/internal/reference"
)

// DOIPattern matches a bare DOI such as 10.1002/jrs.4278.
var DOIPattern = regexp.MustCompile(`\b10\.\d{4,}/[A-Za-z\d()[\]{}<>%._/#:;-]+[A-Za-z\d]\b`)

// doiURL matches URLs that only point at a DOI resolver.
var doiURL = regexp.MustCompile(`[/.]doi[/.].*10\.\d\d\d\d`)

// Entry canonicalizes the DOI to its bare form, drops a url that merely
// encodes the DOI, and records provenance as the entry's file when the
// entry was derived from a PDF.
func Entry(e *reference.Entry, provenance string) {
	if e.DOI != "" {
		e.DOI = FindDOI(e.DOI)
	}
	if e.URL != "" && doiURL.MatchString(e.URL) {
		e.URL = ""
	}
	if IsPDF(provenance) {
		e.SetFilePath(provenance)
	}
}

// FindDOI returns the first DOI in text, or "".
func FindDOI(text string) string {
	return DOIPattern.FindString(text)
}

// IsPDF reports whether path names a PDF file.
func IsPDF(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".pdf")
}
