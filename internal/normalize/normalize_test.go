package normalize

import "testing"

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Fermi", "fermi"},
		{"empty", "", ""},
		{"unicode accents", "Schrödinger", "schrodinger"},
		{"tex umlaut", `Schr{\"o}dinger`, "schrodinger"},
		{"tex acute", `G{\'e}rard`, "gerard"},
		{"tex caron", `Ha{\v{s}}ek`, "hasek"},
		{"tex letter macro", `Erd{\H{o}}s and {\O}rsted`, "erdosandorsted"},
		{"eszett", "Weiß", "weiss"},
		{"tex eszett", `Wei{\ss}`, "weiss"},
		{"polish l", "Łukasiewicz", "lukasiewicz"},
		{"digits and punctuation", "O'Neil-2 Jr.", "oneiljr"},
		{"ligature", "Æbelø", "aebelo"},
		{"non latin dropped", "Пушкин", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.input); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestText_Idempotent(t *testing.T) {
	inputs := []string{"", "Schrödinger", `Schr{\"o}dinger`, "van der Waals", "Łukasiewicz, J.", "12 34"}
	for _, in := range inputs {
		once := Text(in)
		if twice := Text(once); twice != once {
			t.Errorf("Text(Text(%q)) = %q, want %q", in, twice, once)
		}
	}
}

func TestChecksum(t *testing.T) {
	tests := []struct {
		input   string
		modulus int
		want    int
	}{
		{"Untitled Work", 1000, 324},
		{"untitledwork", 1000, 324},
		{"Quantum theory of radiation", 1000, 614},
		{"Quantum theory of radiation", 13, 1},
		{"Another title", 13, 12},
		{"", 1000, 0},
		{"abc", 0, 0},
	}

	for _, tt := range tests {
		if got := Checksum(tt.input, tt.modulus); got != tt.want {
			t.Errorf("Checksum(%q, %d) = %d, want %d", tt.input, tt.modulus, got, tt.want)
		}
	}
}
