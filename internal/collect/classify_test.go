package collect

import (
	"reflect"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		item     string
		wantKind Kind
		wantText string
	}{
		{"", Ignored, ""},
		{"  x ", Ignored, ""},
		{"10.1002/jrs.4278", DOI, "10.1002/jrs.4278"},
		{"  10.1103/RevModPhys.4.87  ", DOI, "10.1103/RevModPhys.4.87"},
		{"10.1002/jrs.4278 trailing words here", DOI, "10.1002/jrs.4278"},
		{"9780553109535", ISBN, "9780553109535"},
		{"0-553-10953-X", ISBN, "0-553-10953-X"},
		{"quantum theory of radiation fermi", SearchText, "quantum theory of radiation fermi"},
		{"four words only here", File, "four words only here"},
		{"-doi-add", Command, "-doi-add"},
		{"-All-Confirm", Command, "-All-Confirm"},
		{"refs.bib", File, "refs.bib"},
		{"papers/fermi1932.pdf", File, "papers/fermi1932.pdf"},
		{"12345", File, "12345"},
	}

	for _, tt := range tests {
		t.Run(tt.item, func(t *testing.T) {
			kind, text := Classify(tt.item)
			if kind != tt.wantKind || text != tt.wantText {
				t.Errorf("Classify(%q) = %v, %q; want %v, %q", tt.item, kind, text, tt.wantKind, tt.wantText)
			}
		})
	}
}

func TestIsBibFile(t *testing.T) {
	for path, want := range map[string]bool{
		"refs.bib":    true,
		"REFS.BIB":    true,
		"refs.bibtex": true,
		"refs.bib.gz": false,
		"refs.txt":    false,
	} {
		if got := IsBibFile(path); got != want {
			t.Errorf("IsBibFile(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestFragments(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "lines",
			text: "10.1002/jrs.4278\n9780553109535\n\n",
			want: []string{"10.1002/jrs.4278", "9780553109535"},
		},
		{
			name: "paragraphs",
			text: "Fermi E.\nQuantum theory\n  of radiation\n\n\nDirac P.\nThe quantum theory\n",
			want: []string{"Fermi E. Quantum theory of radiation", "Dirac P. The quantum theory"},
		},
		{
			name: "empty",
			text: "\n \n",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fragments(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Fragments() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTraceText(t *testing.T) {
	short := "a short item"
	if got := traceText(short); got != short {
		t.Errorf("traceText(short) = %q", got)
	}

	long := strings.Repeat("x", 68) + " word another word"
	if got, want := traceText(long), strings.Repeat("x", 68)+" word..."; got != want {
		t.Errorf("traceText(long) = %q, want %q", got, want)
	}

	unbroken := strings.Repeat("y", 90)
	if got := traceText(unbroken); got != unbroken {
		t.Errorf("traceText(unbroken) = %q", got)
	}
}
