// Package confirm asks the user whether a record found by free-text search
// is the one they meant.
package confirm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// Answer is the user's reply to one confirmation prompt.
type Answer int

const (
	// No rejects this record (the default).
	No Answer = iota
	// Yes accepts this record.
	Yes
	// All accepts this record and every later one without asking.
	All
	// None rejects this record and stops searching by text.
	None
)

func (a Answer) String() string {
	switch a {
	case Yes:
		return "y"
	case All:
		return "all"
	case None:
		return "none"
	default:
		return "n"
	}
}

// Accepted reports whether the record should be kept.
func (a Answer) Accepted() bool {
	return a == Yes || a == All
}

// Prompt is printed after the record.
const Prompt = "     Reference is correct? n (default), y, all, none: "

var wordPattern = regexp.MustCompile(`[a-z]+`)

// ParseAnswer reads a reply. Only its first word counts; "all" and "none"
// must be spelled as prefixes of that word, other replies are judged by
// their first letter.
func ParseAnswer(reply string) Answer {
	word := wordPattern.FindString(strings.ToLower(reply))
	switch {
	case strings.HasPrefix(word, "all"):
		return All
	case strings.HasPrefix(word, "none"):
		return None
	case strings.HasPrefix(word, "a"), strings.HasPrefix(word, "y"):
		return Yes
	default:
		return No
	}
}

// Displayer shows a document while the user decides.
type Displayer interface {
	Show(path string) (func(), error)
}

// Prompter asks on a line-oriented terminal.
type Prompter struct {
	in     *bufio.Reader
	out    io.Writer
	viewer Displayer
}

// Option configures a Prompter.
type Option func(*Prompter)

// WithViewer shows the document a record was searched for during the prompt.
func WithViewer(d Displayer) Option {
	return func(p *Prompter) {
		p.viewer = d
	}
}

// NewPrompter creates a Prompter reading replies from in and writing to out.
func NewPrompter(in io.Reader, out io.Writer, opts ...Option) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Confirm shows record (and the document at path, if any) and reads one
// reply. End of input counts as "none".
func (p *Prompter) Confirm(record, path string) (Answer, error) {
	if path != "" && p.viewer != nil {
		closeViewer, err := p.viewer.Show(path)
		if err != nil {
			slog.Warn("cannot show document", "path", path, "error", err)
		} else {
			defer closeViewer()
		}
	}

	fmt.Fprintln(p.out, strings.TrimSpace(record))
	fmt.Fprint(p.out, Prompt)

	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if strings.TrimSpace(line) == "" {
				fmt.Fprintln(p.out)
				return None, nil
			}
		} else {
			return None, fmt.Errorf("reading answer: %w", err)
		}
	}
	return ParseAnswer(line), nil
}
