package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/matsen/bibmerge/internal/reference"
)

// EntryRow is the flat Parquet row for one entry. Unrecognized fields are
// kept as a JSON array of name/value pairs.
type EntryRow struct {
	Position  int64  `parquet:"position"`
	ID        string `parquet:"id"`
	Type      string `parquet:"type"`
	Author    string `parquet:"author"`
	Editor    string `parquet:"editor"`
	Title     string `parquet:"title"`
	Year      string `parquet:"year"`
	URLDate   string `parquet:"urldate"`
	Month     string `parquet:"month"`
	Pages     string `parquet:"pages"`
	DOI       string `parquet:"doi"`
	ISBN      string `parquet:"isbn"`
	URL       string `parquet:"url"`
	File      string `parquet:"file"`
	ExtraJSON string `parquet:"extra_json"`
}

func toRow(pos int, e reference.Entry) (EntryRow, error) {
	row := EntryRow{
		Position: int64(pos),
		ID:       e.ID,
		Type:     e.Type,
		Author:   e.Author,
		Editor:   e.Editor,
		Title:    e.Title,
		Year:     e.Year,
		URLDate:  e.URLDate,
		Month:    e.Month,
		Pages:    e.Pages,
		DOI:      e.DOI,
		ISBN:     e.ISBN,
		URL:      e.URL,
		File:     e.File,
	}
	if len(e.Extra) > 0 {
		data, err := json.Marshal(e.Extra)
		if err != nil {
			return EntryRow{}, fmt.Errorf("encoding extra fields of %s: %w", e.ID, err)
		}
		row.ExtraJSON = string(data)
	}
	return row, nil
}

func (r EntryRow) entry() (reference.Entry, error) {
	e := reference.Entry{
		ID:      r.ID,
		Type:    r.Type,
		Author:  r.Author,
		Editor:  r.Editor,
		Title:   r.Title,
		Year:    r.Year,
		URLDate: r.URLDate,
		Month:   r.Month,
		Pages:   r.Pages,
		DOI:     r.DOI,
		ISBN:    r.ISBN,
		URL:     r.URL,
		File:    r.File,
	}
	if r.ExtraJSON != "" {
		if err := json.Unmarshal([]byte(r.ExtraJSON), &e.Extra); err != nil {
			return reference.Entry{}, fmt.Errorf("decoding extra fields of %s: %w", r.ID, err)
		}
	}
	return e, nil
}

// WriteParquet writes entries to a Parquet file, replacing existing content.
func WriteParquet(path string, entries []reference.Entry) error {
	rows := make([]EntryRow, 0, len(entries))
	for i, e := range entries {
		row, err := toRow(i, e)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating parquet file: %w", err)
	}
	defer f.Close()

	w := parquet.NewGenericWriter[EntryRow](f)
	if _, err := w.Write(rows); err != nil {
		w.Close()
		return fmt.Errorf("writing parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing parquet file: %w", err)
	}

	slog.Debug("Wrote Parquet file", "path", path, "rows", len(rows))
	return f.Close()
}

// ReadParquet reads entries written by WriteParquet, in position order.
func ReadParquet(path string) ([]reference.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening parquet file: %w", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[EntryRow](f)
	defer reader.Close()

	var entries []reference.Entry
	batch := make([]EntryRow, 128)
	for {
		n, err := reader.Read(batch)
		for _, row := range batch[:n] {
			e, convErr := row.entry()
			if convErr != nil {
				return nil, convErr
			}
			entries = append(entries, e)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading parquet rows: %w", err)
		}
	}

	return entries, nil
}
