package security

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
)

func rules(result domain.PasswordValidationResult) []domain.PasswordRuleID {
	return result.Rules()
}

func TestEvaluateAccumulatesViolations(t *testing.T) {
	evaluator := NewPasswordEvaluator()

	result, err := evaluator.Evaluate("abc", domain.PasswordPolicyRegister, domain.PasswordHints{})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if result.Valid {
		t.Fatal("expected invalid result")
	}
	want := []domain.PasswordRuleID{domain.RuleMinLength, domain.RuleDigit}
	if got := rules(result); !reflect.DeepEqual(got, want) {
		t.Fatalf("violations = %v, want %v", got, want)
	}
	for _, v := range result.Violations {
		if v.Message == "" {
			t.Fatalf("violation %s has no message", v.Rule)
		}
	}
}

func TestEvaluateSingleRuleRemoval(t *testing.T) {
	evaluator := NewPasswordEvaluator()
	hints := domain.PasswordHints{Phone: "243812345678", Subscriber: "812345678", Name: "Jean Mukendi"}

	base, err := evaluator.Evaluate("kinshasa2024", domain.PasswordPolicyRegister, hints)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !base.Valid {
		t.Fatalf("expected baseline to pass, got %v", rules(base))
	}

	cases := []struct {
		name      string
		candidate string
		want      domain.PasswordRuleID
	}{
		{"too short", "kin24", domain.RuleMinLength},
		{"no digit", "kinshasa", domain.RuleDigit},
		{"phone subscriber", "0812345678", domain.RuleSimilarToPhone},
		{"phone canonical inside", "x243812345678", domain.RuleSimilarToPhone},
		{"name word", "mukendi2024", domain.RuleSimilarToName},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := evaluator.Evaluate(tc.candidate, domain.PasswordPolicyRegister, hints)
			if err != nil {
				t.Fatalf("Evaluate returned error: %v", err)
			}
			if got := rules(result); !reflect.DeepEqual(got, []domain.PasswordRuleID{tc.want}) {
				t.Fatalf("violations = %v, want only %s", got, tc.want)
			}
		})
	}
}

func TestEvaluateChangePolicyOrder(t *testing.T) {
	evaluator := NewPasswordEvaluator()

	result, err := evaluator.Evaluate("abc", domain.PasswordPolicyChange, domain.PasswordHints{})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	want := []domain.PasswordRuleID{domain.RuleMinLength, domain.RuleDigit, domain.RuleUppercase}
	if got := rules(result); !reflect.DeepEqual(got, want) {
		t.Fatalf("violations = %v, want %v", got, want)
	}
}

func TestEvaluateReportsSanitization(t *testing.T) {
	evaluator := NewPasswordEvaluator()

	result, err := evaluator.Evaluate(" Secret1<> ", domain.PasswordPolicyRegister, domain.PasswordHints{})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !result.Altered {
		t.Fatal("expected altered flag")
	}
	if !result.Valid {
		t.Fatalf("expected sanitized candidate to pass, got %v", rules(result))
	}

	clean, _ := evaluator.Evaluate("Secret1", domain.PasswordPolicyRegister, domain.PasswordHints{})
	if clean.Altered {
		t.Fatal("clean input must not be reported as altered")
	}
}

func TestEvaluateUnknownPolicy(t *testing.T) {
	evaluator := NewPasswordEvaluator()
	if _, err := evaluator.Evaluate("Secret1", "missing", domain.PasswordHints{}); !errors.Is(err, ErrUnknownPasswordPolicy) {
		t.Fatalf("expected ErrUnknownPasswordPolicy, got %v", err)
	}
}

func TestWithPolicyOverridesPreset(t *testing.T) {
	evaluator := NewPasswordEvaluator(WithPolicy(domain.PasswordPolicy{
		Name:          domain.PasswordPolicyRegister,
		MinLength:     4,
		RequireSymbol: true,
	}))

	result, err := evaluator.Evaluate("abcd", domain.PasswordPolicyRegister, domain.PasswordHints{})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if got := rules(result); !reflect.DeepEqual(got, []domain.PasswordRuleID{domain.RuleSymbol}) {
		t.Fatalf("violations = %v", got)
	}
}

func TestStrengthScore(t *testing.T) {
	weak := Strength("123456", domain.PasswordHints{})
	strong := Strength("C0mplex!Passphrase#2025", domain.PasswordHints{})
	if weak >= strong {
		t.Fatalf("expected weak (%d) < strong (%d)", weak, strong)
	}
	if strong > 4 || weak < 0 {
		t.Fatalf("scores out of range: %d %d", weak, strong)
	}
	if Strength("", domain.PasswordHints{}) != 0 {
		t.Fatal("empty password must score 0")
	}
}

func TestRequireDifferentFrom(t *testing.T) {
	validator := NewPasswordValidator(MinLengthRule(4), RequireDifferentFrom("existing1"))

	violations, err := validator.Validate("existing1", domain.PasswordHints{})
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if len(violations) != 1 || violations[0].Rule != domain.RuleDifferent {
		t.Fatalf("unexpected violations %v", violations)
	}
}

func TestValidatorPropagatesRuleErrors(t *testing.T) {
	boom := errors.New("boom")
	validator := NewPasswordValidator(PasswordRuleFunc(func(string, domain.PasswordHints) error { return boom }))
	if _, err := validator.Validate("x", domain.PasswordHints{}); !errors.Is(err, boom) {
		t.Fatalf("expected rule error, got %v", err)
	}
}
