package security

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
)

const minSimilarHintLength = 4

// PasswordValidationError represents a single password policy violation.
type PasswordValidationError struct {
	Rule    domain.PasswordRuleID
	Message string
}

// Error implements error for PasswordValidationError.
func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordRule validates a password according to a specific policy rule.
type PasswordRule interface {
	Validate(password string, hints domain.PasswordHints) error
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string, hints domain.PasswordHints) error

// Validate executes the underlying rule function.
func (f PasswordRuleFunc) Validate(password string, hints domain.PasswordHints) error {
	return f(password, hints)
}

// PasswordValidator applies a sequence of password rules.
type PasswordValidator struct {
	rules []PasswordRule
}

// NewPasswordValidator constructs a validator with the provided rules.
func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordValidator{rules: copied}
}

// Validate executes every rule in order and collects all violations. A non-nil
// error means a rule failed for a reason other than a policy violation.
func (v *PasswordValidator) Validate(password string, hints domain.PasswordHints) ([]domain.PasswordViolation, error) {
	if v == nil {
		return nil, fmt.Errorf("password validator not configured")
	}

	var violations []domain.PasswordViolation
	for _, rule := range v.rules {
		err := rule.Validate(password, hints)
		if err == nil {
			continue
		}
		var vErr *PasswordValidationError
		if !errors.As(err, &vErr) {
			return nil, err
		}
		violations = append(violations, domain.PasswordViolation{Rule: vErr.Rule, Message: vErr.Message})
	}
	return violations, nil
}

// MinLengthRule ensures the password has at least min characters.
func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string, _ domain.PasswordHints) error {
		if len([]rune(password)) < min {
			return &PasswordValidationError{
				Rule:    domain.RuleMinLength,
				Message: fmt.Sprintf("password must be at least %d characters long", min),
			}
		}
		return nil
	})
}

// RequireDigitRule ensures the password contains at least one digit.
func RequireDigitRule() PasswordRule {
	return requireClass(unicode.IsDigit, domain.RuleDigit, "password must include at least one digit")
}

// RequireUppercaseRule ensures the password contains at least one uppercase letter.
func RequireUppercaseRule() PasswordRule {
	return requireClass(unicode.IsUpper, domain.RuleUppercase, "password must include at least one uppercase letter")
}

// RequireSymbolRule ensures the password contains at least one symbol (punctuation/mark).
func RequireSymbolRule() PasswordRule {
	return requireClass(func(r rune) bool {
		return unicode.IsSymbol(r) || unicode.IsPunct(r)
	}, domain.RuleSymbol, "password must include at least one symbol")
}

func requireClass(match func(rune) bool, rule domain.PasswordRuleID, message string) PasswordRule {
	return PasswordRuleFunc(func(password string, _ domain.PasswordHints) error {
		for _, r := range password {
			if match(r) {
				return nil
			}
		}
		return &PasswordValidationError{Rule: rule, Message: message}
	})
}

// NotSimilarToPhoneRule rejects passwords that resemble the phone hint in its
// canonical or subscriber form.
func NotSimilarToPhoneRule() PasswordRule {
	return PasswordRuleFunc(func(password string, hints domain.PasswordHints) error {
		for _, form := range phoneForms(hints) {
			if similar(password, form) {
				return &PasswordValidationError{
					Rule:    domain.RuleSimilarToPhone,
					Message: "password must not resemble your phone number",
				}
			}
		}
		return nil
	})
}

// NotSimilarToNameRule rejects passwords that resemble the name hint or one of its words.
func NotSimilarToNameRule() PasswordRule {
	return PasswordRuleFunc(func(password string, hints domain.PasswordHints) error {
		name := strings.TrimSpace(hints.Name)
		if name == "" {
			return nil
		}
		forms := append([]string{name}, strings.Fields(name)...)
		for _, form := range forms {
			if similar(password, form) {
				return &PasswordValidationError{
					Rule:    domain.RuleSimilarToName,
					Message: "password must not resemble your name",
				}
			}
		}
		return nil
	})
}

// RequireDifferentFrom ensures the new password differs from the provided comparator.
func RequireDifferentFrom(comparator string) PasswordRule {
	return PasswordRuleFunc(func(password string, _ domain.PasswordHints) error {
		if comparator != "" && password == comparator {
			return &PasswordValidationError{
				Rule:    domain.RuleDifferent,
				Message: "new password must be different from current password",
			}
		}
		return nil
	})
}

func phoneForms(hints domain.PasswordHints) []string {
	forms := make([]string, 0, 3)
	if digits := digitsOnly(hints.Phone); digits != "" {
		forms = append(forms, digits)
	}
	if sub := digitsOnly(hints.Subscriber); sub != "" {
		forms = append(forms, sub, "0"+sub)
	}
	return forms
}

// similar is a case-insensitive match in either direction. A hint only counts
// as contained in the password when it is long enough to be meaningful.
func similar(password, hint string) bool {
	p := strings.ToLower(strings.TrimSpace(password))
	h := strings.ToLower(strings.TrimSpace(hint))
	if p == "" || h == "" {
		return false
	}
	if p == h || strings.Contains(h, p) {
		return true
	}
	return len([]rune(h)) >= minSimilarHintLength && strings.Contains(p, h)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
