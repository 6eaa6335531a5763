package security

import (
	"errors"
	"fmt"
	"strings"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
)

// ErrUnknownPasswordPolicy is returned when a preset name is not registered.
var ErrUnknownPasswordPolicy = errors.New("password policy not registered")

const maxStrengthScore = 4

// DefaultPasswordPolicies returns the built-in presets: a lenient one for sign-up
// and a stricter one for password changes and resets.
func DefaultPasswordPolicies() []domain.PasswordPolicy {
	return []domain.PasswordPolicy{
		{
			Name:             domain.PasswordPolicyRegister,
			MinLength:        6,
			RequireDigit:     true,
			ForbidSimilarity: true,
		},
		{
			Name:             domain.PasswordPolicyChange,
			MinLength:        8,
			RequireDigit:     true,
			RequireUppercase: true,
			ForbidSimilarity: true,
		},
	}
}

// PolicyValidator builds the ordered rule chain for a policy.
func PolicyValidator(policy domain.PasswordPolicy) *PasswordValidator {
	rules := make([]PasswordRule, 0, 6)
	if policy.MinLength > 0 {
		rules = append(rules, MinLengthRule(policy.MinLength))
	}
	if policy.RequireDigit {
		rules = append(rules, RequireDigitRule())
	}
	if policy.RequireUppercase {
		rules = append(rules, RequireUppercaseRule())
	}
	if policy.RequireSymbol {
		rules = append(rules, RequireSymbolRule())
	}
	if policy.ForbidSimilarity {
		rules = append(rules, NotSimilarToPhoneRule(), NotSimilarToNameRule())
	}
	return NewPasswordValidator(rules...)
}

// PasswordEvaluator evaluates candidates against named policy presets.
type PasswordEvaluator struct {
	policies   map[string]domain.PasswordPolicy
	validators map[string]*PasswordValidator
}

// EvaluatorOption customises a PasswordEvaluator.
type EvaluatorOption func(*PasswordEvaluator)

// WithPolicy registers or replaces a preset.
func WithPolicy(policy domain.PasswordPolicy) EvaluatorOption {
	return func(e *PasswordEvaluator) {
		e.register(policy)
	}
}

// NewPasswordEvaluator builds an evaluator with the default presets.
func NewPasswordEvaluator(opts ...EvaluatorOption) *PasswordEvaluator {
	e := &PasswordEvaluator{
		policies:   make(map[string]domain.PasswordPolicy),
		validators: make(map[string]*PasswordValidator),
	}
	for _, policy := range DefaultPasswordPolicies() {
		e.register(policy)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *PasswordEvaluator) register(policy domain.PasswordPolicy) {
	name := strings.TrimSpace(policy.Name)
	policy.Name = name
	e.policies[name] = policy
	e.validators[name] = PolicyValidator(policy)
}

// Policy returns a registered preset.
func (e *PasswordEvaluator) Policy(name string) (domain.PasswordPolicy, bool) {
	p, ok := e.policies[strings.TrimSpace(name)]
	return p, ok
}

// Evaluate sanitizes the candidate and reports every unmet rule of the preset,
// in rule order, together with a strength score.
func (e *PasswordEvaluator) Evaluate(candidate, policy string, hints domain.PasswordHints) (domain.PasswordValidationResult, error) {
	validator, ok := e.validators[strings.TrimSpace(policy)]
	if !ok {
		return domain.PasswordValidationResult{}, fmt.Errorf("%w: %q", ErrUnknownPasswordPolicy, policy)
	}

	sanitized := Sanitize(candidate)
	violations, err := validator.Validate(sanitized, hints)
	if err != nil {
		return domain.PasswordValidationResult{}, err
	}

	return domain.PasswordValidationResult{
		Valid:      len(violations) == 0,
		Violations: violations,
		Strength:   Strength(sanitized, hints),
		Altered:    sanitized != candidate,
	}, nil
}

// Sanitize applies the package-level sanitizer.
func (e *PasswordEvaluator) Sanitize(candidate string) string {
	return Sanitize(candidate)
}

// PasswordsMatch compares two candidates after sanitization.
func (e *PasswordEvaluator) PasswordsMatch(a, b string) bool {
	return PasswordsMatch(a, b)
}

// Strength returns the zxcvbn score (0..4) using the hints as known user inputs.
func Strength(password string, hints domain.PasswordHints) int {
	if password == "" {
		return 0
	}
	inputs := make([]string, 0, 3)
	for _, in := range []string{hints.Phone, hints.Subscriber, hints.Name} {
		if in = strings.TrimSpace(in); in != "" {
			inputs = append(inputs, in)
		}
	}
	score := zxcvbn.PasswordStrength(password, inputs).Score
	if score > maxStrengthScore {
		score = maxStrengthScore
	}
	return score
}
