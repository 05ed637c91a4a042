// Package collect turns command-line items into entries and feeds them,
// in order, to a dedupe.Index. An item is a BibTeX file, a DOI, an ISBN,
// free search text, a PDF, a list file of further items, or a command
// acting on the entries collected so far.
package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/matsen/bibmerge/internal/cleanup"
	"github.com/matsen/bibmerge/internal/confirm"
	"github.com/matsen/bibmerge/internal/dedupe"
	"github.com/matsen/bibmerge/internal/importer"
	"github.com/matsen/bibmerge/internal/pdf"
	"github.com/matsen/bibmerge/internal/reference"
	"github.com/matsen/bibmerge/internal/rename"
)

// Default PDF scan limits.
const (
	DefaultPDFPages   = 2
	DefaultQueryChars = 200
)

// Fetcher retrieves records from the network catalogs.
type Fetcher interface {
	BibTeX(ctx context.Context, doi string) (string, error)
	FindDOI(ctx context.Context, query string) (string, error)
	ISBN(ctx context.Context, isbn string) (reference.Entry, error)
}

// Confirmer asks whether a record found by search text is the right one.
type Confirmer interface {
	Confirm(record, path string) (confirm.Answer, error)
}

// ScanFunc reads a PDF for a DOI or search text.
type ScanFunc func(path string) (pdf.Scan, error)

// Policy decides what happens to records found by search text.
type Policy int

const (
	// Ask the Confirmer about every record.
	Ask Policy = iota
	// AcceptAll records without asking.
	AcceptAll
	// RejectAll skips search text queries altogether.
	RejectAll
)

func (p Policy) String() string {
	switch p {
	case AcceptAll:
		return "all"
	case RejectAll:
		return "none"
	default:
		return "ask"
	}
}

// Collector drives one ingestion pass. It is not safe for concurrent use.
type Collector struct {
	index     *dedupe.Index
	fetcher   Fetcher
	confirmer Confirmer
	scan      ScanFunc
	policy    Policy
	logger    *slog.Logger
	lastTrace string
}

// Option configures a Collector.
type Option func(*Collector)

// WithConfirmer sets who confirms search text results.
func WithConfirmer(c Confirmer) Option {
	return func(col *Collector) {
		col.confirmer = c
	}
}

// WithScanner replaces the PDF scanner.
func WithScanner(fn ScanFunc) Option {
	return func(c *Collector) {
		c.scan = fn
	}
}

// WithPDFLimits sets how many pages of a PDF are read and how many
// characters of its text become search text.
func WithPDFLimits(pages, queryChars int) Option {
	return func(c *Collector) {
		c.scan = func(path string) (pdf.Scan, error) {
			return pdf.ScanFile(path, pages, queryChars)
		}
	}
}

// WithPolicy sets the initial confirmation policy.
func WithPolicy(p Policy) Option {
	return func(c *Collector) {
		c.policy = p
	}
}

// WithLogger sets the logger for the item trace and skipped items.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = l
	}
}

// New creates a Collector that adds entries to index.
func New(index *dedupe.Index, fetcher Fetcher, opts ...Option) *Collector {
	c := &Collector{
		index:   index,
		fetcher: fetcher,
		logger:  slog.Default(),
	}
	WithPDFLimits(DefaultPDFPages, DefaultQueryChars)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the current confirmation policy.
func (c *Collector) Policy() Policy {
	return c.policy
}

// Run processes items in order. It stops at the first fatal error:
// a canceled context, an exhausted identifier ring or a failed prompt.
// Items that fail to resolve are logged and skipped.
func (c *Collector) Run(ctx context.Context, items []string) error {
	for _, item := range items {
		if err := c.Item(ctx, item); err != nil {
			return err
		}
	}
	c.logger.Info("Total", "entries", c.index.Len(), "merged", c.index.Absorbed())
	return nil
}

// Item processes one item.
func (c *Collector) Item(ctx context.Context, item string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	kind, text := Classify(item)
	if kind == Ignored {
		return nil
	}
	c.trace(text)

	switch kind {
	case DOI:
		return c.doi(ctx, text, text)
	case ISBN:
		return c.isbn(ctx, text)
	case SearchText:
		return c.search(ctx, text, "", text)
	case Command:
		return c.command(ctx, strings.ToLower(text[1:]))
	default:
		return c.file(ctx, text)
	}
}

func (c *Collector) trace(text string) {
	if text == c.lastTrace {
		return
	}
	c.lastTrace = text
	c.logger.Info("item", "entries", c.index.Len(), "text", traceText(text))
}

func (c *Collector) add(entries []reference.Entry, provenance string) error {
	for _, e := range entries {
		if _, err := c.index.Add(e, provenance); err != nil {
			return fmt.Errorf("adding entry from %s: %w", provenance, err)
		}
	}
	return nil
}

func (c *Collector) addBibTeX(data, provenance string) error {
	entries, errs := importer.ParseBibTeX([]byte(data))
	for _, err := range errs {
		c.logger.Warn("skipping malformed entry", "source", provenance, "error", err)
	}
	return c.add(entries, provenance)
}

// fetchBibTeX returns the record for doi, or "" when it cannot be had.
func (c *Collector) fetchBibTeX(ctx context.Context, doi string) (string, error) {
	bib, err := c.fetcher.BibTeX(ctx, doi)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.Warn("DOI lookup failed", "doi", doi, "error", err)
		return "", nil
	}
	return bib, nil
}

func (c *Collector) doi(ctx context.Context, doi, provenance string) error {
	bib, err := c.fetchBibTeX(ctx, doi)
	if err != nil || bib == "" {
		return err
	}
	return c.addBibTeX(bib, provenance)
}

func (c *Collector) isbn(ctx context.Context, isbn string) error {
	e, err := c.fetcher.ISBN(ctx, isbn)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("ISBN lookup failed", "isbn", isbn, "error", err)
		return nil
	}
	return c.add([]reference.Entry{e}, isbn)
}

// search looks up the most probable DOI for query and keeps its record if
// the policy or the user accepts it. path names a document to show while
// asking.
func (c *Collector) search(ctx context.Context, query, path, provenance string) error {
	if c.policy == RejectAll {
		return nil
	}

	doi, err := c.fetcher.FindDOI(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("search failed", "query", traceText(query), "error", err)
		return nil
	}
	c.trace(doi)

	bib, err := c.fetchBibTeX(ctx, doi)
	if err != nil || bib == "" {
		return err
	}

	accepted, err := c.accept(bib, path)
	if err != nil || !accepted {
		return err
	}
	return c.addBibTeX(bib, provenance)
}

func (c *Collector) accept(bib, path string) (bool, error) {
	switch c.policy {
	case AcceptAll:
		return true, nil
	case RejectAll:
		return false, nil
	}
	if c.confirmer == nil {
		c.logger.Warn("no one to confirm search result, skipping")
		return false, nil
	}

	answer, err := c.confirmer.Confirm(bib, path)
	if err != nil {
		return false, fmt.Errorf("confirming search result: %w", err)
	}
	switch answer {
	case confirm.All:
		c.policy = AcceptAll
	case confirm.None:
		c.policy = RejectAll
	}
	return answer.Accepted(), nil
}

// command runs a -command. Only its first letter counts.
func (c *Collector) command(ctx context.Context, name string) error {
	switch name[0] {
	case 'd':
		return c.addMissingDOIs(ctx)
	case 'r':
		moves, err := rename.Entries(c.index.Entries())
		for _, m := range moves {
			c.logger.Debug("renamed", "from", m.From, "to", m.To)
		}
		if err != nil {
			c.logger.Warn("some files were not renamed", "error", err)
		}
	case 'a':
		c.policy = AcceptAll
	case 'n':
		c.policy = RejectAll
	default:
		c.logger.Warn("unknown command", "command", "-"+name)
	}
	return nil
}

// addMissingDOIs searches by year, title and author for every entry
// collected so far that has no DOI.
func (c *Collector) addMissingDOIs(ctx context.Context) error {
	type query struct{ text, path string }
	var queries []query
	for _, e := range c.index.Entries() {
		if e.DOI == "" {
			queries = append(queries, query{Query(&e), e.FilePath()})
		}
	}

	for _, q := range queries {
		c.trace(q.text)
		if err := c.search(ctx, q.text, q.path, "-doi-add"); err != nil {
			return err
		}
	}
	return nil
}

// Query is the search text used to find the DOI of e.
func Query(e *reference.Entry) string {
	return strings.Join([]string{e.Year, e.Title, e.Author}, " ")
}

func (c *Collector) file(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.logger.Debug("no such file", "path", path)
		} else {
			c.logger.Warn("cannot read file", "path", path, "error", err)
		}
		return nil
	}

	switch {
	case IsBibFile(path):
		return c.addBibTeX(string(data), path)
	case cleanup.IsPDF(path):
		return c.pdf(ctx, path)
	}

	for _, fragment := range Fragments(string(data)) {
		if err := c.Item(ctx, fragment); err != nil {
			return err
		}
	}
	return nil
}

// pdf ingests the record of a PDF, found by the DOI printed in it or else
// by searching for its opening text. The PDF becomes the entry's file.
func (c *Collector) pdf(ctx context.Context, path string) error {
	scan, err := c.scan(path)
	if err != nil {
		c.logger.Warn("cannot scan PDF", "path", path, "error", err)
		return nil
	}
	switch {
	case scan.DOI != "":
		c.trace(scan.DOI)
		return c.doi(ctx, scan.DOI, path)
	case scan.SearchText != "":
		c.trace(scan.SearchText)
		return c.search(ctx, scan.SearchText, path, path)
	}
	return nil
}
