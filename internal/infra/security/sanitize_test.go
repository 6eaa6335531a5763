package security

import "testing"

func TestSanitizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"Secret1",
		"  padded  ",
		"<script>alert('x')</script>",
		"a & b",
		" <  inner > ",
		"`\"'&<>",
		"mot de passe ",
		"\t< tab\n",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		if twice := Sanitize(once); twice != once {
			t.Fatalf("Sanitize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestSanitizeStripsDenylist(t *testing.T) {
	cases := map[string]string{
		"Secret1":         "Secret1",
		" Secret1 ":       "Secret1",
		"Se<cr>et1":       "Secret1",
		"a&b\"c'd`e":      "abcde",
		"< leading space": "leading space",
	}
	for in, want := range cases {
		if got := Sanitize(in); got != want {
			t.Fatalf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPasswordsMatch(t *testing.T) {
	if !PasswordsMatch("Secret1", "Secret1") {
		t.Fatal("identical passwords must match")
	}
	if !PasswordsMatch("Secret1 ", "Secret1<") {
		t.Fatal("passwords equal after sanitization must match")
	}
	if PasswordsMatch("Secret1", "secret1") {
		t.Fatal("comparison must be case sensitive")
	}
}
