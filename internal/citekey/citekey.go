// Package citekey derives short identifiers and identity keys from
// bibliographic entries.
//
// A short identifier is the normalized surname of the first author, a
// four-digit year and one disambiguating character, e.g. fermi1932c.
// Every function here is total: missing fields fall back to checksums of
// the title, so a key can always be produced.
package citekey

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/matsen/bibmerge/internal/normalize"
	"github.com/matsen/bibmerge/internal/reference"
)

// UnknownAuthor is the surname used when an entry has neither author nor editor.
const UnknownAuthor = "unknown"

// Checksum moduli for the pseudo-year and the fallback disambiguator.
const (
	YearModulus  = 1000
	TitleModulus = 13
)

// Months in BibTeX's three-letter form, January first.
var Months = [12]string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

var (
	yearPattern     = regexp.MustCompile(`\d{4}`)
	digitsPattern   = regexp.MustCompile(`[0-9]+`)
	monthNumPattern = regexp.MustCompile(`^(0?[1-9]|1[012])$`)
)

// YearPolicy selects which field supplies the four-digit year.
type YearPolicy int

const (
	// YearOnly reads the year field alone.
	YearOnly YearPolicy = iota
	// URLDateFirst prefers a year found in urldate, then falls back to year.
	URLDateFirst
)

// ParseYearPolicy maps a config value ("year", "urldate") to a policy.
func ParseYearPolicy(s string) (YearPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "year":
		return YearOnly, nil
	case "urldate":
		return URLDateFirst, nil
	default:
		return YearOnly, fmt.Errorf("invalid year policy %q (valid: year, urldate)", s)
	}
}

func (p YearPolicy) String() string {
	if p == URLDateFirst {
		return "urldate"
	}
	return "year"
}

// Deriver computes keys under a fixed year policy.
type Deriver struct {
	YearPolicy YearPolicy
}

// AuthorYear returns the author-year partial key: the normalized surname of
// the first author (or editor) followed by a four-digit year. Entries with
// no year get 9 followed by the zero-padded title checksum, e.g. 9042.
func (d Deriver) AuthorYear(e *reference.Entry) string {
	author := e.AuthorOrEditor()
	if author == "" {
		author = UnknownAuthor
	}
	surname := normalize.Text(SplitName(FirstAuthor(author)).Surname())
	return surname + d.year(e)
}

func (d Deriver) year(e *reference.Entry) string {
	if d.YearPolicy == URLDateFirst {
		if y := yearPattern.FindString(e.URLDate); y != "" {
			return y
		}
	}
	if y := yearPattern.FindString(e.Year); y != "" {
		return y
	}
	return fmt.Sprintf("9%03d", normalize.Checksum(e.Title, YearModulus))
}

// Disambiguator returns the character appended to the author-year key:
// a..l for a publication month, the last digit of the first page number,
// or m..z from the title checksum.
func Disambiguator(e *reference.Entry) byte {
	if month, ok := monthIndex(e.Month); ok {
		return byte('a' + month)
	}
	if digits := digitsPattern.FindString(e.Pages); digits != "" {
		return digits[len(digits)-1]
	}
	return byte('m' + normalize.Checksum(e.Title, TitleModulus))
}

// monthIndex returns the 0-based month for "3", "03", "mar" or "March".
// A value that is neither falls through to the next disambiguation rule.
func monthIndex(month string) (int, bool) {
	month = strings.TrimSpace(month)
	if month == "" {
		return 0, false
	}
	if monthNumPattern.MatchString(month) {
		n, _ := strconv.Atoi(month)
		return n - 1, true
	}
	if len(month) < 3 {
		return 0, false
	}
	prefix := strings.ToLower(month[:3])
	for i, m := range Months {
		if m == prefix {
			return i, true
		}
	}
	return 0, false
}

// Composite returns the proposed short identifier before collision
// resolution. An entry whose existing id already extends its author-year
// key by one character keeps that id.
func (d Deriver) Composite(e *reference.Entry) string {
	ay := d.AuthorYear(e)
	if _, size := utf8.DecodeLastRuneInString(e.ID); size > 0 && e.ID[:len(e.ID)-size] == ay {
		return e.ID
	}
	return ay + string(Disambiguator(e))
}

// Identity returns the durable deduplication key: the DOI, else the ISBN,
// else the author-year key followed by the loosely normalized title.
// DOIs and ISBNs compare case-insensitively.
func (d Deriver) Identity(e *reference.Entry) string {
	if e.DOI != "" {
		return strings.ToLower(e.DOI)
	}
	if e.ISBN != "" {
		return strings.ToLower(e.ISBN)
	}
	return d.AuthorYear(e) + LooseTitle(e.Title)
}

// LooseTitle lower-cases a title and removes everything that is not a
// letter, a digit or a space.
func LooseTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if r == ' ' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
