// Package reference defines the core domain type for bibliographic entries.
package reference

import "strings"

// Recognized field names. BibTeX field names are case-insensitive and are
// stored lower-cased.
const (
	FieldAuthor  = "author"
	FieldEditor  = "editor"
	FieldTitle   = "title"
	FieldYear    = "year"
	FieldURLDate = "urldate"
	FieldMonth   = "month"
	FieldPages   = "pages"
	FieldDOI     = "doi"
	FieldISBN    = "isbn"
	FieldURL     = "url"
	FieldFile    = "file"
	FieldID      = "id"
)

// Field is a single name/value pair of an entry.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Entry is one bibliographic record. The fields the identity engine reasons
// about are named; every other field lives in Extra, in input order.
// An empty string means the field is absent.
type Entry struct {
	Type string `json:"type"` // BibTeX entry type: article, book, ...
	ID   string `json:"id"`   // Short identifier (citation key)

	Author  string `json:"author,omitempty"`
	Editor  string `json:"editor,omitempty"`
	Title   string `json:"title,omitempty"`
	Year    string `json:"year,omitempty"`
	URLDate string `json:"urldate,omitempty"`
	Month   string `json:"month,omitempty"`
	Pages   string `json:"pages,omitempty"`
	DOI     string `json:"doi,omitempty"`
	ISBN    string `json:"isbn,omitempty"`
	URL     string `json:"url,omitempty"`
	File    string `json:"file,omitempty"`

	Extra []Field `json:"extra,omitempty"`
}

// named lists the recognized fields in output order.
var named = []struct {
	name string
	ptr  func(*Entry) *string
}{
	{FieldAuthor, func(e *Entry) *string { return &e.Author }},
	{FieldEditor, func(e *Entry) *string { return &e.Editor }},
	{FieldTitle, func(e *Entry) *string { return &e.Title }},
	{FieldYear, func(e *Entry) *string { return &e.Year }},
	{FieldMonth, func(e *Entry) *string { return &e.Month }},
	{FieldPages, func(e *Entry) *string { return &e.Pages }},
	{FieldDOI, func(e *Entry) *string { return &e.DOI }},
	{FieldISBN, func(e *Entry) *string { return &e.ISBN }},
	{FieldURL, func(e *Entry) *string { return &e.URL }},
	{FieldURLDate, func(e *Entry) *string { return &e.URLDate }},
	{FieldFile, func(e *Entry) *string { return &e.File }},
}

func (e *Entry) slot(name string) *string {
	for _, n := range named {
		if n.name == name {
			return n.ptr(e)
		}
	}
	return nil
}

// Get returns the value of a field, or "" if the entry lacks it.
// The pseudo-field "id" maps to the entry's identifier.
func (e *Entry) Get(name string) string {
	name = strings.ToLower(name)
	if name == FieldID {
		return e.ID
	}
	if p := e.slot(name); p != nil {
		return *p
	}
	for _, f := range e.Extra {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// Has reports whether the entry carries a non-empty value for name.
func (e *Entry) Has(name string) bool {
	return e.Get(name) != ""
}

// Set stores a field value, appending unrecognized names to Extra.
func (e *Entry) Set(name, value string) {
	name = strings.ToLower(name)
	if name == FieldID {
		e.ID = value
		return
	}
	if p := e.slot(name); p != nil {
		*p = value
		return
	}
	for i, f := range e.Extra {
		if f.Name == name {
			e.Extra[i].Value = value
			return
		}
	}
	e.Extra = append(e.Extra, Field{Name: name, Value: value})
}

// Delete removes a field.
func (e *Entry) Delete(name string) {
	name = strings.ToLower(name)
	if name == FieldID {
		e.ID = ""
		return
	}
	if p := e.slot(name); p != nil {
		*p = ""
		return
	}
	for i, f := range e.Extra {
		if f.Name == name {
			e.Extra = append(e.Extra[:i], e.Extra[i+1:]...)
			return
		}
	}
}

// Fields returns every non-empty field except the identifier: recognized
// fields first in a fixed order, then Extra in input order.
func (e *Entry) Fields() []Field {
	var fields []Field
	for _, n := range named {
		if v := *n.ptr(e); v != "" {
			fields = append(fields, Field{Name: n.name, Value: v})
		}
	}
	for _, f := range e.Extra {
		if f.Value != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() Entry {
	c := *e
	if e.Extra != nil {
		c.Extra = append([]Field(nil), e.Extra...)
	}
	return c
}

// AuthorOrEditor returns the author field, falling back to editor.
func (e *Entry) AuthorOrEditor() string {
	if e.Author != "" {
		return e.Author
	}
	return e.Editor
}

// FilePath returns the document path from a JabRef-style file field,
// which wraps the path in colons (":papers/x.pdf:").
func (e *Entry) FilePath() string {
	return strings.TrimSuffix(strings.TrimPrefix(e.File, ":"), ":")
}

// SetFilePath stores path in JabRef form.
func (e *Entry) SetFilePath(path string) {
	e.File = ":" + path + ":"
}
