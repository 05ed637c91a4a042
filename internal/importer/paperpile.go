// Package importer parses bibliographic entries from BibTeX and Paperpile exports.
package importer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/matsen/bibmerge/internal/reference"
)

// FlexibleString can unmarshal from either string or number JSON values.
type FlexibleString string

func (f *FlexibleString) UnmarshalJSON(data []byte) error {
	// Handle null
	if string(data) == "null" {
		*f = ""
		return nil
	}

	// Try string first
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexibleString(s)
		return nil
	}

	// Try number
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexibleString(n.String())
		return nil
	}

	// Try int directly
	var i int
	if err := json.Unmarshal(data, &i); err == nil {
		*f = FlexibleString(strconv.Itoa(i))
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexibleString", string(data))
}

func (f FlexibleString) String() string {
	return string(f)
}

// PaperpileEntry represents a single entry from a Paperpile JSON export.
type PaperpileEntry struct {
	ID        string `json:"_id"`
	Citekey   string `json:"citekey"`
	DOI       string `json:"doi"`
	Title     string `json:"title"`
	Abstract  string `json:"abstract"`
	Journal   string `json:"journal"`
	Published struct {
		Year  FlexibleString `json:"year"`
		Month FlexibleString `json:"month"`
		Day   FlexibleString `json:"day"`
	} `json:"published"`
	Author []struct {
		First string `json:"first"`
		Last  string `json:"last"`
		ORCID string `json:"orcid"`
	} `json:"author"`
	Attachments []struct {
		ID         string `json:"_id"`
		ArticlePDF int    `json:"article_pdf"` // 1 = main PDF, 0 = supplement
		Filename   string `json:"filename"`
	} `json:"attachments"`
}

// ParsePaperpile parses a Paperpile JSON export and returns entries.
func ParsePaperpile(data []byte) ([]reference.Entry, []error) {
	var records []PaperpileEntry
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, []error{fmt.Errorf("parsing Paperpile JSON: %w", err)}
	}

	var entries []reference.Entry
	var errs []error

	for i, record := range records {
		e, err := paperpileToEntry(record)
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d (%s): %w", i+1, record.Citekey, err))
			continue
		}
		entries = append(entries, e)
	}

	return entries, errs
}

// paperpileToEntry converts a Paperpile record to an Entry.
func paperpileToEntry(record PaperpileEntry) (reference.Entry, error) {
	if record.Title == "" {
		return reference.Entry{}, fmt.Errorf("missing required field 'title'")
	}

	year := record.Published.Year.String()
	if year != "" {
		if _, err := strconv.Atoi(year); err != nil {
			return reference.Entry{}, fmt.Errorf("invalid year: %s", year)
		}
	}

	authors := make([]string, 0, len(record.Author))
	for _, a := range record.Author {
		if a.First != "" {
			authors = append(authors, a.Last+", "+a.First)
		} else {
			authors = append(authors, a.Last)
		}
	}

	// Use citekey as ID, falling back to Paperpile ID if no citekey
	id := record.Citekey
	if id == "" {
		id = record.ID
	}

	e := reference.Entry{
		Type:   "article",
		ID:     id,
		DOI:    record.DOI,
		Title:  record.Title,
		Author: strings.Join(authors, " and "),
		Year:   year,
	}
	if month, err := strconv.Atoi(record.Published.Month.String()); err == nil && month >= 1 && month <= 12 {
		e.Month = strconv.Itoa(month)
	}
	if record.Journal != "" {
		e.Set("journal", record.Journal)
	}
	if record.Abstract != "" {
		e.Set("abstract", record.Abstract)
	}

	for _, att := range record.Attachments {
		if att.ArticlePDF == 1 && e.File == "" {
			e.SetFilePath(att.Filename)
		}
	}

	return e, nil
}
