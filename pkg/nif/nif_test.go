package nif

import (
	"fmt"
	"testing"
)

func TestValid(t *testing.T) {
	tests := []struct {
		nif  string
		want bool
	}{
		{"516562240", true},
		{"500000000", true},
		{"501442600", true},
		{"502011475", true},
		{"503504564", true},
		{"500769405", true},
		{"516562241", false},
		{"123456789", false},
		{"000000000", true},
		{"", false},
		{"51656224", false},
		{"5165622400", false},
		{"51656224X", false},
		{"abc123456", false},
	}

	for _, tt := range tests {
		t.Run(tt.nif, func(t *testing.T) {
			if got := Valid(tt.nif); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.nif, got, tt.want)
			}
		})
	}
}

// Flipping the check digit of a valid NIF must always invalidate it.
func TestValidCheckDigitFlip(t *testing.T) {
	valid := []string{"516562240", "516313916", "516681826", "518899586", "518822532", "518881555"}
	for _, n := range valid {
		if !Valid(n) {
			t.Fatalf("expected %q to be valid", n)
		}
		for d := byte('0'); d <= '9'; d++ {
			if d == n[8] {
				continue
			}
			mutated := n[:8] + string(d)
			if Valid(mutated) {
				t.Errorf("Valid(%q) = true, want false", mutated)
			}
		}
	}
}

func TestEntityPrefix(t *testing.T) {
	if got := EntityPrefix("516562240"); got != '5' {
		t.Errorf("EntityPrefix = %c, want 5", got)
	}
	if got := EntityPrefix(""); got != 0 {
		t.Errorf("EntityPrefix(empty) = %v, want 0", got)
	}
}

// Exactly one check digit in 0..9 satisfies the checksum for any prefix.
func TestValidSingleCheckDigit(t *testing.T) {
	prefixes := []string{"51656224", "50000000", "29384756", "60011223"}
	for _, p := range prefixes {
		count := 0
		for d := 0; d <= 9; d++ {
			if Valid(fmt.Sprintf("%s%d", p, d)) {
				count++
			}
		}
		if count != 1 {
			t.Errorf("prefix %s: %d valid check digits, want 1", p, count)
		}
	}
}
