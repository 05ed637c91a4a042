package collect

import (
	"regexp"
	"strings"

	"github.com/matsen/bibmerge/internal/cleanup"
)

// Kind is what an input item stands for.
type Kind int

const (
	Ignored Kind = iota
	DOI
	ISBN
	SearchText
	Command
	File
)

func (k Kind) String() string {
	switch k {
	case DOI:
		return "doi"
	case ISBN:
		return "isbn"
	case SearchText:
		return "search"
	case Command:
		return "command"
	case File:
		return "file"
	default:
		return "ignored"
	}
}

var (
	isbnPattern    = regexp.MustCompile(`^\d[\d-]{8,15}[\dX]$`)
	searchPattern  = regexp.MustCompile(`(\S+\s+){4}\S`)
	commandPattern = regexp.MustCompile(`^-[A-Za-z-]+$`)
	bibPattern     = regexp.MustCompile(`(?i)\.bib(tex)?$`)
	paragraphBreak = regexp.MustCompile(`\S\s*\n\n+\s*\S`)
	blankLines     = regexp.MustCompile(`\n\n+`)
)

// Classify trims item and decides what it is. The returned text is the
// trimmed item, or just the DOI when the item starts with one.
func Classify(item string) (Kind, string) {
	text := strings.TrimSpace(item)
	if len(text) < 2 {
		return Ignored, ""
	}
	if loc := cleanup.DOIPattern.FindStringIndex(text); loc != nil && loc[0] == 0 {
		return DOI, text[:loc[1]]
	}
	switch {
	case isbnPattern.MatchString(text):
		return ISBN, text
	case searchPattern.MatchString(text):
		return SearchText, text
	case commandPattern.MatchString(text):
		return Command, text
	}
	return File, text
}

// IsBibFile reports whether path names a BibTeX file.
func IsBibFile(path string) bool {
	return bibPattern.MatchString(path)
}

// Fragments splits a list file into items: by paragraph when the text has
// blank-line separated paragraphs, by line otherwise. Whitespace inside a
// fragment is collapsed; empty fragments are dropped.
func Fragments(text string) []string {
	var parts []string
	if paragraphBreak.MatchString(text) {
		parts = blankLines.Split(text, -1)
	} else {
		parts = strings.Split(text, "\n")
	}

	var out []string
	for _, p := range parts {
		if f := strings.Join(strings.Fields(p), " "); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// traceText shortens text for the item trace: past 70 characters it is cut
// at the next whitespace and marked with "...".
func traceText(text string) string {
	const keep = 70
	if len(text) <= keep {
		return text
	}
	i := strings.IndexAny(text[keep:], " \t\n\r\f\v")
	if i < 0 {
		return text
	}
	return text[:keep+i] + "..."
}
