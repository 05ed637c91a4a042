// Package dedupe accumulates entries into a deduplicated collection and
// assigns each resident entry a unique short identifier.
//
// An Index is built once per run and fed entries one at a time, in input
// order. Order matters: the first entry seen for a publication wins merge
// conflicts, and collision letters are handed out in arrival order.
// An Index is not safe for concurrent use.
package dedupe

import (
	"fmt"
	"log/slog"

	"github.com/matsen/bibmerge/internal/citekey"
	"github.com/matsen/bibmerge/internal/reference"
)

// ErrRingExhausted is returned by Add when an identifier root has run out
// of collision letters. It is not recoverable within a run.
var ErrRingExhausted = citekey.ErrRingExhausted

// CleanupFunc normalizes an incoming entry before its keys are derived.
// provenance names where the entry came from, e.g. a file name.
type CleanupFunc func(e *reference.Entry, provenance string)

// Outcome says what Add did with an entry.
type Outcome int

const (
	// Resident entries were appended and given an identifier.
	Resident Outcome = iota
	// Absorbed entries only filled gaps in an earlier entry.
	Absorbed
)

func (o Outcome) String() string {
	if o == Absorbed {
		return "absorbed"
	}
	return "resident"
}

// Result describes one Add call.
type Result struct {
	Outcome  Outcome
	Position int      // Position of the resident entry that now holds the data
	ID       string   // Identifier of that entry
	Filled   []string // Fields copied into an existing entry (Absorbed only)
}

// Index is the collection plus its two lookup tables.
type Index struct {
	deriver citekey.Deriver
	ring    citekey.Ring
	cleanup CleanupFunc
	logger  *slog.Logger

	entries    []reference.Entry
	byIdentity map[string]int    // identity key -> position
	roots      map[string]string // identifier root -> consumed suffix letters
	assigned   map[string]bool   // identifiers handed out so far
	absorbed   int
}

// Option configures an Index.
type Option func(*Index)

// WithYearPolicy selects where the year of the author-year key comes from.
func WithYearPolicy(p citekey.YearPolicy) Option {
	return func(ix *Index) {
		ix.deriver.YearPolicy = p
	}
}

// WithRing replaces the collision ring.
func WithRing(r citekey.Ring) Option {
	return func(ix *Index) {
		ix.ring = r
	}
}

// WithCleanup installs the hook run on every entry before key derivation.
func WithCleanup(fn CleanupFunc) Option {
	return func(ix *Index) {
		ix.cleanup = fn
	}
}

// WithLogger sets the logger for per-entry decisions.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Index) {
		ix.logger = l
	}
}

// New creates an empty Index.
func New(opts ...Option) *Index {
	ix := &Index{
		ring:       citekey.DefaultRing,
		logger:     slog.Default(),
		byIdentity: make(map[string]int),
		roots:      make(map[string]string),
		assigned:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Add ingests one entry. A publication seen before only fills the empty
// fields of the earlier entry, which keeps its values and identifier.
// A new publication is appended with a freshly assigned identifier.
func (ix *Index) Add(e reference.Entry, provenance string) (Result, error) {
	if ix.cleanup != nil {
		ix.cleanup(&e, provenance)
	}

	key := ix.deriver.Identity(&e)
	if pos, ok := ix.byIdentity[key]; ok {
		filled := fillMissing(&ix.entries[pos], &e)
		ix.absorbed++
		ix.logger.Debug("merged duplicate entry",
			"id", ix.entries[pos].ID, "key", key, "filled", filled, "source", provenance)
		return Result{Outcome: Absorbed, Position: pos, ID: ix.entries[pos].ID, Filled: filled}, nil
	}

	root := ix.deriver.Composite(&e)
	id, err := ix.assign(root)
	if err != nil {
		return Result{}, err
	}

	e.ID = id
	pos := len(ix.entries)
	ix.entries = append(ix.entries, e)
	ix.byIdentity[key] = pos
	ix.logger.Debug("added entry", "id", id, "root", root, "position", pos, "source", provenance)
	return Result{Outcome: Resident, Position: pos, ID: id}, nil
}

// assign resolves root to an identifier no other entry holds and records
// the consumed suffix letter.
func (ix *Index) assign(root string) (string, error) {
	consumed, seen := ix.roots[root]
	if !seen {
		consumed = root[len(root)-1:]
		if !ix.assigned[root] {
			ix.roots[root] = consumed
			ix.assigned[root] = true
			return root, nil
		}
	}

	// The root is taken, either by an earlier entry with the same root or by
	// a collision resolved under a different root. Letters whose identifier
	// is already held elsewhere are consumed and skipped.
	for {
		letter, err := ix.ring.Next(consumed)
		if err != nil {
			ix.roots[root] = consumed
			return "", fmt.Errorf("assigning identifier for %s: %w", root, err)
		}
		consumed += string(letter)
		id := root[:len(root)-1] + string(letter)
		if !ix.assigned[id] {
			ix.roots[root] = consumed
			ix.assigned[id] = true
			return id, nil
		}
	}
}

// fillMissing copies every field of src that dst lacks or holds empty.
// The identifier is never copied. Returns the names of the copied fields.
func fillMissing(dst, src *reference.Entry) []string {
	var filled []string
	if dst.Type == "" && src.Type != "" {
		dst.Type = src.Type
	}
	for _, f := range src.Fields() {
		if !dst.Has(f.Name) {
			dst.Set(f.Name, f.Value)
			filled = append(filled, f.Name)
		}
	}
	return filled
}

// Entries returns the resident entries in insertion order. The slice is
// owned by the Index; callers may edit fields other than ID in place.
func (ix *Index) Entries() []reference.Entry {
	return ix.entries
}

// Len returns the number of resident entries.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Absorbed returns how many entries were merged into earlier ones.
func (ix *Index) Absorbed() int {
	return ix.absorbed
}

// Lookup returns the position of the entry with the given identity key.
func (ix *Index) Lookup(key string) (int, bool) {
	pos, ok := ix.byIdentity[key]
	return pos, ok
}

// IdentityKey derives the identity key of e under the Index's year policy.
func (ix *Index) IdentityKey(e *reference.Entry) string {
	return ix.deriver.Identity(e)
}
