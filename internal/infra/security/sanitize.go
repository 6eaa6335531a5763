package security

import (
	"crypto/subtle"
	"strings"
)

// sanitizeDenylist holds markup and quoting characters stripped from password input.
const sanitizeDenylist = "<>\"'`&"

// Sanitize removes denylisted characters and surrounding whitespace. The result
// never contains a denylisted character or edge whitespace, so Sanitize is idempotent.
func Sanitize(input string) string {
	stripped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(sanitizeDenylist, r) {
			return -1
		}
		return r
	}, input)
	return strings.TrimSpace(stripped)
}

// PasswordsMatch compares the sanitized forms in constant time.
func PasswordsMatch(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(Sanitize(a)), []byte(Sanitize(b))) == 1
}
