// Package storage persists collections as JSONL and Parquet and maintains
// an SQLite full-text index over them.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/matsen/bibmerge/internal/reference"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// ReadAll reads all entries from a JSONL file.
func ReadAll(path string) ([]reference.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Missing file is an empty collection
		}
		return nil, fmt.Errorf("opening entries file: %w", err)
	}
	defer f.Close()

	var entries []reference.Entry
	scanner := bufio.NewScanner(f)

	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var e reference.Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		entries = append(entries, e)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading entries file: %w", err)
	}

	return entries, nil
}

// WriteAll writes all entries to a JSONL file, replacing existing content.
func WriteAll(path string, entries []reference.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating entries file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding entry %d: %w", i, err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing entries file: %w", err)
	}
	return nil
}
