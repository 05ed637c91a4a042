package citekey

import (
	"strings"
	"unicode"
)

// Name holds the parts of one BibTeX personal name.
type Name struct {
	First []string
	Von   []string
	Last  []string
	Jr    []string
}

// Surname returns the last-name words joined by a space. The von part is
// not included.
func (n Name) Surname() string {
	return strings.Join(n.Last, " ")
}

// FirstAuthor returns the text before the first " and " separator that is
// not protected by braces.
func FirstAuthor(authors string) string {
	depth := 0
	for i := 0; i < len(authors); i++ {
		switch authors[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ' ':
			if depth == 0 && strings.HasPrefix(authors[i:], " and ") {
				return authors[:i]
			}
		}
	}
	return authors
}

// SplitName parses a personal name in any of the three BibTeX forms
// "First von Last", "von Last, First" and "von Last, Jr, First".
// Parsing is lenient: surplus commas fold into the first-name part and
// malformed braces never cause an error.
func SplitName(s string) Name {
	parts := splitCommas(strings.TrimSpace(s))

	var n Name
	switch len(parts) {
	case 0:
		return n
	case 1:
		words := splitWords(parts[0])
		if len(words) == 0 {
			return n
		}
		if len(words) == 1 {
			n.Last = words
			return n
		}
		head := words[:len(words)-1]
		start := -1
		end := -1
		for i, w := range head {
			if isLowerWord(w) {
				if start < 0 {
					start = i
				}
				end = i
			}
		}
		if start < 0 {
			n.First = head
			n.Last = words[len(words)-1:]
			return n
		}
		if start > 0 {
			n.First = words[:start]
		}
		n.Von = words[start : end+1]
		n.Last = words[end+1:]
	default:
		n.Von, n.Last = splitVonLast(splitWords(parts[0]))
		if len(parts) == 2 {
			n.First = splitWords(parts[1])
		} else {
			n.Jr = splitWords(parts[1])
			n.First = splitWords(strings.Join(parts[2:], " "))
		}
	}
	return n
}

// splitVonLast separates the leading lower-case words from the surname.
// The final word always belongs to the surname.
func splitVonLast(words []string) (von, last []string) {
	if len(words) <= 1 {
		return nil, words
	}
	end := -1
	for i, w := range words[:len(words)-1] {
		if isLowerWord(w) {
			end = i
		}
	}
	if end < 0 {
		return nil, words
	}
	return words[:end+1], words[end+1:]
}

// splitCommas splits on commas outside braces and trims each part.
func splitCommas(s string) []string {
	if s == "" {
		return nil
	}
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

// splitWords splits on whitespace and '~' outside braces.
func splitWords(s string) []string {
	var words []string
	var cur strings.Builder
	depth := 0
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '{':
			depth++
			cur.WriteRune(r)
		case r == '}':
			if depth > 0 {
				depth--
			}
			cur.WriteRune(r)
		case depth == 0 && (unicode.IsSpace(r) || r == '~'):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

// isLowerWord reports whether a word starts with a lower-case letter.
// Letters inside braces do not count, except for a TeX special character
// such as {\"u}, whose case is that of the letter after the command.
func isLowerWord(w string) bool {
	depth := 0
	for i := 0; i < len(w); i++ {
		c := w[i]
		switch {
		case c == '{':
			if depth == 0 && i+1 < len(w) && w[i+1] == '\\' {
				return specialIsLower(w[i+1:])
			}
			depth++
		case c == '}':
			if depth > 0 {
				depth--
			}
		case depth == 0 && c >= 'a' && c <= 'z':
			return true
		case depth == 0 && c >= 'A' && c <= 'Z':
			return false
		case depth == 0 && c >= 0x80:
			r := []rune(w[i:])[0]
			if unicode.IsLetter(r) {
				return unicode.IsLower(r)
			}
		}
	}
	return false
}

// specialIsLower inspects the letter that follows a TeX control sequence.
func specialIsLower(s string) bool {
	i := 1
	for i < len(s) && unicode.IsLetter(rune(s[i])) {
		i++
	}
	if i == 1 && i < len(s) {
		i++ // control symbol such as \" or \'
	}
	for ; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			return true
		}
		if c >= 'A' && c <= 'Z' {
			return false
		}
	}
	// Letter macro such as {\o} or {\ss}: the command name decides.
	for j := 1; j < len(s); j++ {
		if c := s[j]; c >= 'a' && c <= 'z' {
			return true
		} else if c >= 'A' && c <= 'Z' {
			return false
		}
	}
	return false
}
