package storage

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"

	"github.com/matsen/bibmerge/internal/reference"
)

// DB wraps a SQLite database connection holding a search index over one
// collection. The index is derived data: it is rebuilt whole from the
// collection and never edited in place.
type DB struct {
	db *sql.DB
}

// KeyFunc derives the identity key stored alongside each entry.
type KeyFunc func(e *reference.Entry) string

const metaSourceFingerprint = "source_fingerprint"

// IndexPath returns the index location for a collection file: a hidden
// sibling named after it.
func IndexPath(collectionPath string) string {
	dir, base := filepath.Split(collectionPath)
	return filepath.Join(dir, "."+base+".db")
}

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS entries (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			type TEXT NOT NULL,
			doi TEXT,
			isbn TEXT,
			identity_key TEXT NOT NULL,
			entry_json TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_entries_identity ON entries(identity_key);

		-- Standalone full-text table, joined to entries by id
		CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
			id UNINDEXED,
			title,
			author,
			year,
			extra_text
		);

		CREATE TABLE IF NOT EXISTS index_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`

	_, err := db.Exec(schema)
	return err
}

// Fingerprint returns the hex BLAKE2b-256 digest of a collection file's
// contents, used to tell whether an index still matches its source.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Rebuild clears the database and indexes entries in collection order.
// fingerprint identifies the source the entries were read from.
func (d *DB) Rebuild(entries []reference.Entry, keyOf KeyFunc, fingerprint string) (int, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting rebuild: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"entries", "entries_fts", "index_meta"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return 0, fmt.Errorf("clearing %s table: %w", table, err)
		}
	}

	entryStmt, err := tx.Prepare(`
		INSERT INTO entries (id, position, type, doi, isbn, identity_key, entry_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing entries insert: %w", err)
	}
	defer entryStmt.Close()

	ftsStmt, err := tx.Prepare(`
		INSERT INTO entries_fts (id, title, author, year, extra_text)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing fts insert: %w", err)
	}
	defer ftsStmt.Close()

	for i := range entries {
		e := &entries[i]
		data, err := json.Marshal(e)
		if err != nil {
			return 0, fmt.Errorf("marshaling entry %s: %w", e.ID, err)
		}

		_, err = entryStmt.Exec(
			e.ID, i, e.Type,
			nullableStringValue(strings.ToLower(e.DOI)), nullableStringValue(strings.ToLower(e.ISBN)),
			keyOf(e), string(data),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting entry %s: %w", e.ID, err)
		}

		_, err = ftsStmt.Exec(e.ID, e.Title, e.AuthorOrEditor(), e.Year, extraText(e))
		if err != nil {
			return 0, fmt.Errorf("inserting fts for %s: %w", e.ID, err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO index_meta (key, value) VALUES (?, ?)`,
		metaSourceFingerprint, fingerprint); err != nil {
		return 0, fmt.Errorf("saving fingerprint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing rebuild: %w", err)
	}
	return len(entries), nil
}

// extraText joins the values of the unrecognized fields for full-text search.
func extraText(e *reference.Entry) string {
	var parts []string
	for _, f := range e.Extra {
		if f.Value != "" {
			parts = append(parts, f.Value)
		}
	}
	return strings.Join(parts, " ")
}

// SourceFingerprint returns the fingerprint recorded by the last Rebuild,
// or "" for a database that was never built.
func (d *DB) SourceFingerprint() (string, error) {
	var value string
	err := d.db.QueryRow(`SELECT value FROM index_meta WHERE key = ?`, metaSourceFingerprint).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// IsStale reports whether the index was built from something other than data.
func (d *DB) IsStale(data []byte) (bool, error) {
	fp, err := d.SourceFingerprint()
	if err != nil {
		return false, fmt.Errorf("reading fingerprint: %w", err)
	}
	return fp != Fingerprint(data), nil
}

// GetByID retrieves an entry by its identifier. Returns nil if absent.
func (d *DB) GetByID(id string) (*reference.Entry, error) {
	row := d.db.QueryRow(`SELECT entry_json FROM entries WHERE id = ?`, id)
	return scanEntry(row)
}

// GetByIdentity retrieves the entry holding an identity key. Returns nil if absent.
func (d *DB) GetByIdentity(key string) (*reference.Entry, error) {
	row := d.db.QueryRow(`SELECT entry_json FROM entries WHERE identity_key = ?`, key)
	return scanEntry(row)
}

// Search performs a full-text search and returns matching entries, best
// matches first.
func (d *DB) Search(query string, limit int) ([]reference.Entry, error) {
	return d.match(prepareFTSQuery(query), limit)
}

// SearchField performs a search restricted to one field.
func (d *DB) SearchField(field, value string, limit int) ([]reference.Entry, error) {
	switch field {
	case "author":
		return d.match("author:"+prepareAuthorQuery(value), limit)
	case "title", "year":
		return d.match(field+":"+prepareFTSQuery(value), limit)
	default:
		return nil, fmt.Errorf("unknown search field: %s", field)
	}
}

func (d *DB) match(ftsQuery string, limit int) ([]reference.Entry, error) {
	rows, err := d.db.Query(`
		SELECT e.entry_json
		FROM (SELECT id, rank FROM entries_fts WHERE entries_fts MATCH ?) f
		JOIN entries e ON e.id = f.id
		ORDER BY f.rank, e.position
		LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// prepareAuthorQuery prepares an author name for FTS5 search with prefix matching,
// so "Tim" matches "Timothy".
func prepareAuthorQuery(author string) string {
	parts := strings.Fields(author)
	if len(parts) == 0 {
		return ""
	}

	var terms []string
	for _, part := range parts {
		escaped := strings.ReplaceAll(part, "\"", "\"\"")
		terms = append(terms, "\""+escaped+"\"*")
	}

	// Multi-word names match any part
	return "(" + strings.Join(terms, " OR ") + ")"
}

// ListAll returns all entries in collection order, optionally limited.
func (d *DB) ListAll(limit int) ([]reference.Entry, error) {
	query := `SELECT entry_json FROM entries ORDER BY position`
	var args []any

	if limit > 0 {
		query += " LIMIT ?"
		args = []any{limit}
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Count returns the total number of entries.
func (d *DB) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM entries").Scan(&count)
	return count, err
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*reference.Entry, error) {
	var data string
	if err := s.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var e reference.Entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, fmt.Errorf("parsing stored entry: %w", err)
	}
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]reference.Entry, error) {
	var entries []reference.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if e != nil {
			entries = append(entries, *e)
		}
	}
	return entries, rows.Err()
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// prepareFTSQuery escapes special characters for FTS5 queries.
func prepareFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	// FTS5 uses double quotes for phrase matching
	if strings.ContainsAny(query, "\"*+-:(){}[]^~.,/") {
		query = strings.ReplaceAll(query, "\"", "\"\"")
		return "\"" + query + "\""
	}

	return query
}
