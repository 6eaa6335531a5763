package i18n

import (
	"testing"

	"golang.org/x/text/language"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
)

func newCatalog(t *testing.T, lang string) *Catalog {
	t.Helper()
	c, err := New(lang)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestMatchNegotiatesLanguage(t *testing.T) {
	c := newCatalog(t, "fr")

	cases := map[string]language.Tag{
		"":                     language.French,
		"en-US,en;q=0.9":       language.English,
		"fr-CD":                language.French,
		"de-DE":                language.French,
		"de;q=1, en;q=0.5":     language.English,
		"not a language!!!!!!": language.French,
	}
	for header, want := range cases {
		if got := c.Match(header); got != want {
			t.Fatalf("Match(%q) = %s, want %s", header, got, want)
		}
	}
}

func TestDefaultLanguageOverride(t *testing.T) {
	c := newCatalog(t, "en")
	if c.Fallback() != language.English {
		t.Fatalf("fallback = %s", c.Fallback())
	}
	if got := c.Match("de"); got != language.English {
		t.Fatalf("unsupported language should fall back to english, got %s", got)
	}
}

func TestViolationsAreLocalized(t *testing.T) {
	c := newCatalog(t, "fr")
	violations := []domain.PasswordViolation{
		{Rule: domain.RuleMinLength},
		{Rule: domain.RuleDigit},
	}

	fr := c.Violations(language.French, violations, 6)
	if fr[0].Message != "Le mot de passe doit contenir au moins 6 caractères" {
		t.Fatalf("unexpected french message %q", fr[0].Message)
	}

	en := c.Violations(language.English, violations, 8)
	if en[0].Message != "Password must be at least 8 characters long" || en[1].Message != "Password must include at least one digit" {
		t.Fatalf("unexpected english messages %+v", en)
	}
}

func TestAuthMessageFallsBackToInternal(t *testing.T) {
	c := newCatalog(t, "fr")

	if got := c.AuthMessage(language.English, domain.AuthWrongPassword); got != "Incorrect password" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := c.AuthMessage(language.English, "auth/something-new"); got != "An internal error occurred" {
		t.Fatalf("unknown code should map to internal error, got %q", got)
	}
}

func TestTextFormatsArguments(t *testing.T) {
	c := newCatalog(t, "fr")
	if got := c.Text(language.English, KeyAttemptsRemaining, 2); got != "2 attempt(s) remaining" {
		t.Fatalf("unexpected text %q", got)
	}
}
