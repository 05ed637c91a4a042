package importer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/matsen/bibmerge/internal/reference"
)

// ParseBibTeX parses BibTeX source into entries, in file order.
// @string macros are expanded, @comment and @preamble blocks are skipped.
// A malformed entry is reported and skipped; parsing resumes at the next '@'.
func ParseBibTeX(data []byte) ([]reference.Entry, []error) {
	p := &bibParser{src: []rune(string(data)), macros: make(map[string]string)}
	var entries []reference.Entry
	var errs []error

	for p.skipTo('@') {
		start := p.pos
		p.pos++ // '@'
		e, ok, err := p.block()
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", p.lineAt(start), err))
			continue
		}
		if ok {
			entries = append(entries, e)
		}
	}
	return entries, errs
}

type bibParser struct {
	src    []rune
	pos    int
	macros map[string]string
}

func (p *bibParser) eof() bool { return p.pos >= len(p.src) }

func (p *bibParser) peek() rune {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *bibParser) lineAt(pos int) int {
	n := 1
	for _, r := range p.src[:pos] {
		if r == '\n' {
			n++
		}
	}
	return n
}

func (p *bibParser) skipTo(r rune) bool {
	for !p.eof() && p.src[p.pos] != r {
		p.pos++
	}
	return !p.eof()
}

func (p *bibParser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func isNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	return strings.ContainsRune("_-:.+/'!?*&$;<>[]`|", r)
}

func (p *bibParser) name() string {
	start := p.pos
	for !p.eof() && isNameRune(p.src[p.pos]) {
		p.pos++
	}
	return string(p.src[start:p.pos])
}

// block parses what follows an '@'. ok is false for blocks that carry no entry.
func (p *bibParser) block() (reference.Entry, bool, error) {
	p.skipSpace()
	typ := strings.ToLower(p.name())
	p.skipSpace()
	open := p.peek()
	if typ == "" || (open != '{' && open != '(') {
		// Text outside entries is a comment in BibTeX, stray '@' included.
		return reference.Entry{}, false, nil
	}
	closer := '}'
	if open == '(' {
		closer = ')'
	}
	p.pos++

	switch typ {
	case "comment", "preamble":
		p.pos--
		if _, err := p.balanced(open, closer); err != nil {
			return reference.Entry{}, false, err
		}
		return reference.Entry{}, false, nil
	case "string":
		p.skipSpace()
		name := strings.ToLower(p.name())
		p.skipSpace()
		if p.peek() != '=' {
			return reference.Entry{}, false, fmt.Errorf("expected '=' in @string")
		}
		p.pos++
		value, err := p.value()
		if err != nil {
			return reference.Entry{}, false, err
		}
		p.macros[name] = value
		p.skipSpace()
		if p.peek() == closer {
			p.pos++
		}
		return reference.Entry{}, false, nil
	}

	e := reference.Entry{Type: typ}
	p.skipSpace()
	start := p.pos
	for !p.eof() && p.src[p.pos] != ',' && p.src[p.pos] != closer {
		p.pos++
	}
	if p.eof() {
		return reference.Entry{}, false, fmt.Errorf("unterminated @%s entry", typ)
	}
	e.ID = strings.TrimSpace(string(p.src[start:p.pos]))

	for {
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			continue
		case closer:
			p.pos++
			return e, true, nil
		case 0:
			return reference.Entry{}, false, fmt.Errorf("unterminated entry %s", e.ID)
		}

		field := strings.ToLower(p.name())
		if field == "" {
			return reference.Entry{}, false, fmt.Errorf("entry %s: unexpected %q", e.ID, p.peek())
		}
		p.skipSpace()
		if p.peek() != '=' {
			return reference.Entry{}, false, fmt.Errorf("entry %s: expected '=' after %s", e.ID, field)
		}
		p.pos++
		value, err := p.value()
		if err != nil {
			return reference.Entry{}, false, fmt.Errorf("entry %s, field %s: %w", e.ID, field, err)
		}
		if field == reference.FieldID {
			field = "bibid" // the citation key is the identifier
		}
		e.Set(field, value)
	}
}

// value parses a '#'-concatenation of braced, quoted, numeric and macro parts.
func (p *bibParser) value() (string, error) {
	var parts []string
	for {
		p.skipSpace()
		switch r := p.peek(); {
		case r == '{':
			s, err := p.balanced('{', '}')
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		case r == '"':
			s, err := p.quoted()
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		case isNameRune(r):
			word := p.name()
			if v, ok := p.macros[strings.ToLower(word)]; ok {
				word = v
			}
			parts = append(parts, word)
		default:
			return "", fmt.Errorf("expected value, found %q", r)
		}
		p.skipSpace()
		if p.peek() != '#' {
			break
		}
		p.pos++
	}
	return collapseSpace(strings.Join(parts, "")), nil
}

// balanced returns the text between an opening rune and its matching close.
// A backslash escapes the rune after it.
func (p *bibParser) balanced(open, closer rune) (string, error) {
	p.pos++ // opening rune
	start := p.pos
	depth := 1
	for !p.eof() {
		switch p.src[p.pos] {
		case '\\':
			p.pos++ // escaped rune never opens or closes
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				s := string(p.src[start:p.pos])
				p.pos++
				return s, nil
			}
		}
		p.pos++
	}
	return "", fmt.Errorf("unbalanced %q", open)
}

// quoted returns the text of a "..." value; quotes inside braces do not end it.
func (p *bibParser) quoted() (string, error) {
	p.pos++
	start := p.pos
	depth := 0
	for !p.eof() {
		switch p.src[p.pos] {
		case '\\':
			p.pos++
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case '"':
			if depth == 0 {
				s := string(p.src[start:p.pos])
				p.pos++
				return s, nil
			}
		}
		p.pos++
	}
	return "", fmt.Errorf("unterminated quoted value")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
