// Package export writes entries as BibTeX.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matsen/bibmerge/internal/reference"
)

// DefaultType is written for entries that carry no entry type.
const DefaultType = "misc"

// ToBibTeX converts an entry to BibTeX. Field values are written verbatim
// inside braces; they are expected to be BibTeX text already.
func ToBibTeX(e reference.Entry) string {
	entryType := e.Type
	if entryType == "" {
		entryType = DefaultType
	}
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@%s{%s,\n", entryType, e.ID))
	for _, f := range e.Fields() {
		b.WriteString(fmt.Sprintf("  %s = {%s},\n", f.Name, balanceBraces(f.Value)))
	}
	b.WriteString("}\n")

	return b.String()
}

// ToBibTeXList converts multiple entries to BibTeX, in order.
func ToBibTeXList(entries []reference.Entry) string {
	var out []string
	for _, e := range entries {
		out = append(out, ToBibTeX(e))
	}
	return strings.Join(out, "\n")
}

// WriteFile replaces path with the serialized entries. The file is written
// to a temporary sibling first and renamed into place.
func WriteFile(path string, entries []reference.Entry) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(ToBibTeXList(entries)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// balanceBraces escapes unmatched braces so the value cannot end the field
// early or swallow the next one. A backslash and the rune after it are
// copied as they are; a trailing backslash is followed by a space so it
// cannot escape the closing brace.
func balanceBraces(s string) string {
	if !strings.ContainsAny(s, "{}\\") {
		return s
	}
	runes := []rune(s)
	var b strings.Builder
	var open []int // byte offsets in b of unmatched '{'
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; r {
		case '\\':
			b.WriteRune(r)
			if i+1 == len(runes) {
				b.WriteByte(' ')
				continue
			}
			i++
			b.WriteRune(runes[i])
		case '{':
			open = append(open, b.Len())
			b.WriteRune(r)
		case '}':
			if len(open) == 0 {
				b.WriteString(`\}`)
				continue
			}
			open = open[:len(open)-1]
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	for i := len(open) - 1; i >= 0; i-- {
		out = out[:open[i]] + `\` + out[open[i]:]
	}
	return out
}

// EscapeLaTeX escapes special LaTeX characters in plain text, such as
// catalog metadata that did not come from BibTeX.
func EscapeLaTeX(s string) string {
	// & first, so later replacements are not re-escaped
	replacer := strings.NewReplacer(
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
