// Package nif validates Portuguese tax identification numbers (NIF/NIPC).
package nif

// Valid reports whether s is a well-formed NIF: nine digits whose last
// digit matches the mod-11 check digit computed over the first eight.
func Valid(s string) bool {
	if len(s) != 9 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	sum := 0
	for i := 0; i < 8; i++ {
		sum += int(s[i]-'0') * (9 - i)
	}

	expected := 11 - sum%11
	if sum%11 < 2 {
		expected = 0
	}

	return int(s[8]-'0') == expected
}

// EntityPrefix returns the leading digit of a NIF, which encodes the
// entity class (1/2 individuals, 5 companies, 6 public bodies, ...).
// Returns 0 for an empty string.
func EntityPrefix(s string) byte {
	if s == "" {
		return 0
	}
	return s[0]
}
