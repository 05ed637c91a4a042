package collect

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matsen/bibmerge/internal/citekey"
	"github.com/matsen/bibmerge/internal/cleanup"
	"github.com/matsen/bibmerge/internal/confirm"
	"github.com/matsen/bibmerge/internal/dedupe"
	"github.com/matsen/bibmerge/internal/pdf"
	"github.com/matsen/bibmerge/internal/reference"
)

const (
	fermiDOI    = "10.1103/RevModPhys.4.87"
	fermiQuery  = "quantum theory of radiation by fermi"
	fermiBibTeX = `@article{Fermi_1932, author={Fermi, Enrico}, title={Quantum Theory of Radiation},
  year={1932}, doi={10.1103/RevModPhys.4.87}, pages={87--132}, url={https://doi.org/10.1103/RevModPhys.4.87}}`
	diracDOI    = "10.1098/rspa.1927.0039"
	diracQuery  = "the quantum theory of the emission by dirac"
	diracBibTeX = `@article{Dirac_1927, author={Dirac, P. A. M.}, title={The quantum theory of the emission and absorption of radiation},
  year={1927}, doi={10.1098/rspa.1927.0039}}`
)

var errNotFound = errors.New("not found")

type fakeFetcher struct {
	bibtex map[string]string
	dois   map[string]string
	books  map[string]reference.Entry
	calls  []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bibtex: map[string]string{fermiDOI: fermiBibTeX, diracDOI: diracBibTeX},
		dois:   map[string]string{fermiQuery: fermiDOI, diracQuery: diracDOI},
		books: map[string]reference.Entry{
			"9780553109535": {Type: "book", ID: "9780553109535", Author: "Stephen Hawking", Title: "A Brief History of Time", Year: "1988", ISBN: "9780553109535"},
		},
	}
}

func (f *fakeFetcher) BibTeX(ctx context.Context, doi string) (string, error) {
	f.calls = append(f.calls, "bibtex "+doi)
	if bib, ok := f.bibtex[doi]; ok {
		return bib, nil
	}
	return "", errNotFound
}

func (f *fakeFetcher) FindDOI(ctx context.Context, query string) (string, error) {
	f.calls = append(f.calls, "search "+query)
	if doi, ok := f.dois[query]; ok {
		return doi, nil
	}
	return "", errNotFound
}

func (f *fakeFetcher) ISBN(ctx context.Context, isbn string) (reference.Entry, error) {
	f.calls = append(f.calls, "isbn "+isbn)
	if e, ok := f.books[isbn]; ok {
		return e, nil
	}
	return reference.Entry{}, errNotFound
}

func (f *fakeFetcher) searched() int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, "search ") {
			n++
		}
	}
	return n
}

type fakeConfirmer struct {
	answers []confirm.Answer
	records []string
	paths   []string
}

func (f *fakeConfirmer) Confirm(record, path string) (confirm.Answer, error) {
	f.records = append(f.records, record)
	f.paths = append(f.paths, path)
	if len(f.answers) == 0 {
		return confirm.No, nil
	}
	a := f.answers[0]
	f.answers = f.answers[1:]
	return a, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCollector(fetcher Fetcher, opts ...Option) (*Collector, *dedupe.Index) {
	ix := dedupe.New(dedupe.WithCleanup(cleanup.Entry), dedupe.WithLogger(quietLogger()))
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return New(ix, fetcher, opts...), ix
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_BibFileThenDOI(t *testing.T) {
	bib := writeFile(t, t.TempDir(), "refs.bib", `@article{old,
  author = {Fermi, Enrico},
  title = {Quantum Theory of Radiation},
  year = {1932},
  doi = {https://doi.org/10.1103/RevModPhys.4.87}
}`)
	fetcher := newFakeFetcher()
	c, ix := newTestCollector(fetcher)

	if err := c.Run(context.Background(), []string{bib, fermiDOI}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	entries := ix.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.DOI != fermiDOI {
		t.Errorf("DOI = %q, want bare DOI", e.DOI)
	}
	if e.Pages != "87--132" {
		t.Errorf("Pages = %q, want filled from the catalog record", e.Pages)
	}
	if e.URL != "" {
		t.Errorf("URL = %q, want DOI url dropped", e.URL)
	}
	if !strings.HasPrefix(e.ID, "fermi1932") {
		t.Errorf("ID = %q", e.ID)
	}
}

func TestRun_ISBN(t *testing.T) {
	c, ix := newTestCollector(newFakeFetcher())

	if err := c.Run(context.Background(), []string{"9780553109535"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if ix.Len() != 1 || ix.Entries()[0].Type != "book" {
		t.Fatalf("entries = %+v", ix.Entries())
	}
	if id := ix.Entries()[0].ID; !strings.HasPrefix(id, "hawking1988") {
		t.Errorf("ID = %q, want hawking1988 root", id)
	}
}

func TestRun_FailedLookupsAreSkipped(t *testing.T) {
	fetcher := newFakeFetcher()
	c, ix := newTestCollector(fetcher, WithPolicy(AcceptAll))

	items := []string{"10.9999/missing", "0000000000", "nothing matches these five words", fermiDOI}
	if err := c.Run(context.Background(), items); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if ix.Len() != 1 {
		t.Errorf("got %d entries, want 1", ix.Len())
	}
}

func TestSearch_Confirmation(t *testing.T) {
	tests := []struct {
		name       string
		answers    []confirm.Answer
		wantLen    int
		wantAsked  int
		wantSearch int
		wantPolicy Policy
	}{
		{"yes then no", []confirm.Answer{confirm.Yes, confirm.No}, 1, 2, 2, Ask},
		{"no then yes", []confirm.Answer{confirm.No, confirm.Yes}, 1, 2, 2, Ask},
		{"all sticks", []confirm.Answer{confirm.All}, 2, 1, 2, AcceptAll},
		{"none stops searching", []confirm.Answer{confirm.None}, 0, 1, 1, RejectAll},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newFakeFetcher()
			confirmer := &fakeConfirmer{answers: tt.answers}
			c, ix := newTestCollector(fetcher, WithConfirmer(confirmer))

			if err := c.Run(context.Background(), []string{fermiQuery, diracQuery}); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if ix.Len() != tt.wantLen {
				t.Errorf("got %d entries, want %d", ix.Len(), tt.wantLen)
			}
			if len(confirmer.records) != tt.wantAsked {
				t.Errorf("asked %d times, want %d", len(confirmer.records), tt.wantAsked)
			}
			if fetcher.searched() != tt.wantSearch {
				t.Errorf("searched %d times, want %d", fetcher.searched(), tt.wantSearch)
			}
			if c.Policy() != tt.wantPolicy {
				t.Errorf("Policy() = %v, want %v", c.Policy(), tt.wantPolicy)
			}
		})
	}
}

func TestSearch_ConfirmerSeesRecord(t *testing.T) {
	confirmer := &fakeConfirmer{answers: []confirm.Answer{confirm.Yes}}
	c, _ := newTestCollector(newFakeFetcher(), WithConfirmer(confirmer))

	if err := c.Item(context.Background(), fermiQuery); err != nil {
		t.Fatalf("Item() error = %v", err)
	}
	if len(confirmer.records) != 1 || !strings.Contains(confirmer.records[0], "Quantum Theory of Radiation") {
		t.Errorf("records = %q", confirmer.records)
	}
	if confirmer.paths[0] != "" {
		t.Errorf("path = %q, want none for plain search text", confirmer.paths[0])
	}
}

func TestSearch_WithoutConfirmerSkips(t *testing.T) {
	c, ix := newTestCollector(newFakeFetcher())

	if err := c.Item(context.Background(), fermiQuery); err != nil {
		t.Fatalf("Item() error = %v", err)
	}
	if ix.Len() != 0 {
		t.Errorf("got %d entries, want 0", ix.Len())
	}
}

func TestCommands_Policy(t *testing.T) {
	tests := []struct {
		items      []string
		wantLen    int
		wantSearch int
	}{
		{[]string{"-all-confirm", fermiQuery}, 1, 1},
		{[]string{"-none-confirm", fermiQuery}, 0, 0},
		{[]string{"-n", "-a", fermiQuery}, 1, 1},
		{[]string{"-All", "-None", fermiQuery, diracQuery}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.items[:len(tt.items)-1], " "), func(t *testing.T) {
			fetcher := newFakeFetcher()
			c, ix := newTestCollector(fetcher)

			if err := c.Run(context.Background(), tt.items); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if ix.Len() != tt.wantLen {
				t.Errorf("got %d entries, want %d", ix.Len(), tt.wantLen)
			}
			if fetcher.searched() != tt.wantSearch {
				t.Errorf("searched %d times, want %d", fetcher.searched(), tt.wantSearch)
			}
		})
	}
}

func TestCommand_DOIAdd(t *testing.T) {
	dir := t.TempDir()
	bib := writeFile(t, dir, "refs.bib", `@article{x,
  author = {Fermi, Enrico},
  title = {Quantum Theory of Radiation},
  year = {1932},
  file = {:scan.pdf:}
}
@article{y,
  author = {Dirac, P. A. M.},
  title = {Has a DOI already},
  year = {1927},
  doi = {10.1000/present}
}`)
	query := "1932 Quantum Theory of Radiation Fermi, Enrico"
	fetcher := newFakeFetcher()
	fetcher.dois[query] = fermiDOI
	confirmer := &fakeConfirmer{answers: []confirm.Answer{confirm.Yes}}
	c, ix := newTestCollector(fetcher, WithConfirmer(confirmer))

	if err := c.Run(context.Background(), []string{bib, "-doi-add"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if fetcher.searched() != 1 || fetcher.calls[0] != "search "+query {
		t.Errorf("calls = %q", fetcher.calls)
	}
	if len(confirmer.paths) != 1 || confirmer.paths[0] != "scan.pdf" {
		t.Errorf("confirmer paths = %q, want the entry's file", confirmer.paths)
	}

	entries := ix.Entries()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	found := entries[2]
	if found.DOI != fermiDOI {
		t.Errorf("new entry DOI = %q", found.DOI)
	}
	if found.ID == entries[0].ID {
		t.Errorf("new entry reuses id %q", found.ID)
	}
	if found.FilePath() != "" {
		t.Errorf("new entry file = %q, want none", found.FilePath())
	}
}

func TestQuery(t *testing.T) {
	e := reference.Entry{Year: "1932", Title: "Quantum Theory", Author: "Fermi, Enrico"}
	if got := Query(&e); got != "1932 Quantum Theory Fermi, Enrico" {
		t.Errorf("Query() = %q", got)
	}
}

func TestCommand_RenameFiles(t *testing.T) {
	dir := t.TempDir()
	scan := writeFile(t, dir, "scan.pdf", "%PDF")
	writeFile(t, dir, "scan_si.pdf", "%PDF")
	bib := writeFile(t, dir, "refs.bib", `@article{x, author={Fermi, Enrico}, title={Quantum Theory of Radiation},
  year={1932}, pages={87--132}, file={:`+scan+`:}}`)
	c, ix := newTestCollector(newFakeFetcher())

	if err := c.Run(context.Background(), []string{bib, "-rename-files"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	e := ix.Entries()[0]
	if e.ID != "fermi19327" {
		t.Fatalf("ID = %q, want fermi19327", e.ID)
	}
	want := filepath.Join(dir, "fermi19327.pdf")
	if e.FilePath() != want {
		t.Errorf("file = %q, want %q", e.FilePath(), want)
	}
	for _, name := range []string{"fermi19327.pdf", "fermi19327_si.pdf"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestCommand_Unknown(t *testing.T) {
	fetcher := newFakeFetcher()
	c, ix := newTestCollector(fetcher)

	if err := c.Run(context.Background(), []string{"-xyz", "--"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if ix.Len() != 0 || len(fetcher.calls) != 0 {
		t.Errorf("unknown commands had effects: %d entries, calls %q", ix.Len(), fetcher.calls)
	}
}

func TestListFile(t *testing.T) {
	dir := t.TempDir()
	inner := writeFile(t, dir, "inner.txt", "9780553109535\n")
	list := writeFile(t, dir, "list.txt", fermiDOI+"\n"+filepath.Join(dir, "missing.bib")+"\n"+inner+"\n"+fermiDOI+"\n")
	fetcher := newFakeFetcher()
	c, ix := newTestCollector(fetcher)

	if err := c.Run(context.Background(), []string{list}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	entries := ix.Entries()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].DOI != fermiDOI || entries[1].ISBN != "9780553109535" {
		t.Errorf("entries out of order: %+v", entries)
	}
	if ix.Absorbed() != 1 {
		t.Errorf("Absorbed() = %d, want 1", ix.Absorbed())
	}
}

func TestMissingFileYieldsNothing(t *testing.T) {
	c, ix := newTestCollector(newFakeFetcher())

	if err := c.Run(context.Background(), []string{filepath.Join(t.TempDir(), "nope.bib")}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if ix.Len() != 0 {
		t.Errorf("got %d entries, want 0", ix.Len())
	}
}

func TestPDF(t *testing.T) {
	dir := t.TempDir()
	withDOI := writeFile(t, dir, "a.pdf", "%PDF")
	withText := writeFile(t, dir, "b.pdf", "%PDF")
	blank := writeFile(t, dir, "c.pdf", "%PDF")
	broken := writeFile(t, dir, "d.pdf", "%PDF")

	scans := map[string]pdf.Scan{
		withDOI:  {DOI: fermiDOI},
		withText: {SearchText: diracQuery},
		blank:    {},
	}
	scanner := func(path string) (pdf.Scan, error) {
		if s, ok := scans[path]; ok {
			return s, nil
		}
		return pdf.Scan{}, errors.New("malformed PDF")
	}
	confirmer := &fakeConfirmer{answers: []confirm.Answer{confirm.Yes}}
	c, ix := newTestCollector(newFakeFetcher(), WithScanner(scanner), WithConfirmer(confirmer))

	if err := c.Run(context.Background(), []string{withDOI, withText, blank, broken}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	entries := ix.Entries()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].FilePath() != withDOI || entries[1].FilePath() != withText {
		t.Errorf("files = %q, %q", entries[0].FilePath(), entries[1].FilePath())
	}
	if len(confirmer.paths) != 1 || confirmer.paths[0] != withText {
		t.Errorf("confirmer paths = %q, want the scanned PDF", confirmer.paths)
	}
}

func TestRun_RingExhaustedStops(t *testing.T) {
	bib := writeFile(t, t.TempDir(), "refs.bib", `
@article{a, author={Fermi, E.}, title={One}, year={1932}, month={jan}}
@article{b, author={Fermi, E.}, title={Two}, year={1932}, month={jan}}
@article{c, author={Fermi, E.}, title={Three}, year={1932}, month={jan}}`)
	fetcher := newFakeFetcher()
	ix := dedupe.New(dedupe.WithRing(citekey.Ring{Letters: "abc", Limit: 2}), dedupe.WithLogger(quietLogger()))
	c := New(ix, fetcher, WithLogger(quietLogger()))

	err := c.Run(context.Background(), []string{bib, fermiDOI})
	if !errors.Is(err, dedupe.ErrRingExhausted) {
		t.Fatalf("Run() error = %v, want ErrRingExhausted", err)
	}
	if len(fetcher.calls) != 0 {
		t.Errorf("items after the failure were processed: %q", fetcher.calls)
	}
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, _ := newTestCollector(newFakeFetcher())

	if err := c.Run(ctx, []string{fermiDOI}); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
