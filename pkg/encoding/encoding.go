// Package encoding repairs text that went through the wrong charset,
// which is endemic in Portuguese invoice files: Latin-1 bytes read as
// UTF-8 ("Ã§" where "ç" was meant) and UTF-8 files decoded as Latin-1.
package encoding

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// mojibakeMarkers are byte sequences that only appear when Latin-1 text
// was mistakenly decoded as UTF-8 (or when decoding failed outright).
var mojibakeMarkers = []string{
	"�", // replacement character
	"Ã§",     // ç
	"Ã£",     // ã
	"Ã¡",     // á
	"Ã©",     // é
	"Ã­",     // í
	"Ã³",     // ó
	"Ãº",     // ú
	"Ã‡",     // Ç
	"â‚¬",    // €
}

// HasMojibake reports whether s shows signs of a charset round-trip gone
// wrong.
func HasMojibake(s string) bool {
	for _, m := range mojibakeMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// RepairDoubleEncoded undoes a UTF-8-read-as-Latin-1 round trip: each rune
// below U+0100 is narrowed back to its byte value and the result decoded
// as UTF-8. Returns the input unchanged when the repair is not applicable.
func RepairDoubleEncoded(s string) string {
	buf := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			return s
		}
		buf = append(buf, byte(r))
	}
	if !utf8.Valid(buf) {
		return s
	}
	return string(buf)
}

// Latin1ToUTF8 decodes ISO-8859-1 bytes into a UTF-8 string.
func Latin1ToUTF8(b []byte) string {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// AutoFix repairs s when mojibake markers are present, otherwise returns
// it unchanged. Safe to apply twice.
func AutoFix(s string) string {
	if !HasMojibake(s) {
		return s
	}
	fixed := RepairDoubleEncoded(s)
	if fixed != s && !strings.Contains(fixed, "�") {
		return fixed
	}
	return s
}

// DecodeBytes turns raw file bytes into a clean UTF-8 string: invalid
// UTF-8 is treated as Latin-1, valid UTF-8 still goes through AutoFix.
func DecodeBytes(b []byte) string {
	if !utf8.Valid(b) {
		return Latin1ToUTF8(b)
	}
	return AutoFix(string(b))
}

// RemoveAccents strips combining marks: "José Antão" becomes "Jose Antao".
// Used for accent-insensitive matching of company names.
func RemoveAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
