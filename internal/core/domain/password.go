package domain

// PasswordRuleID names a single password policy requirement.
type PasswordRuleID string

const (
	RuleMinLength      PasswordRuleID = "min_length"
	RuleDigit          PasswordRuleID = "digit"
	RuleUppercase      PasswordRuleID = "uppercase"
	RuleSymbol         PasswordRuleID = "symbol"
	RuleSimilarToPhone PasswordRuleID = "similar_to_phone"
	RuleSimilarToName  PasswordRuleID = "similar_to_name"
	RuleMismatch       PasswordRuleID = "mismatch"
	RuleDifferent      PasswordRuleID = "different"
)

// PasswordPolicy describes the rule set a candidate is evaluated against.
type PasswordPolicy struct {
	Name             string `mapstructure:"name" json:"name"`
	MinLength        int    `mapstructure:"min_length" json:"min_length"`
	RequireDigit     bool   `mapstructure:"require_digit" json:"require_digit"`
	RequireUppercase bool   `mapstructure:"require_uppercase" json:"require_uppercase"`
	RequireSymbol    bool   `mapstructure:"require_symbol" json:"require_symbol"`
	ForbidSimilarity bool   `mapstructure:"forbid_similarity" json:"forbid_similarity"`
}

const (
	PasswordPolicyRegister = "register"
	PasswordPolicyChange   = "change"
)

// PasswordHints carries personal information the password must not resemble.
// Phone is canonical; Subscriber is the national significant number.
type PasswordHints struct {
	Phone      string
	Subscriber string
	Name       string
}

// PasswordViolation is one unmet requirement with its display message.
type PasswordViolation struct {
	Rule    PasswordRuleID `json:"rule"`
	Message string         `json:"message"`
}

// PasswordValidationResult is the outcome of a policy evaluation. Violations are
// informational; callers decide whether to block submission.
type PasswordValidationResult struct {
	Valid      bool
	Violations []PasswordViolation
	Strength   int
	Altered    bool
}

// Rules returns the ordered list of violated rule identifiers.
func (r PasswordValidationResult) Rules() []PasswordRuleID {
	out := make([]PasswordRuleID, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, v.Rule)
	}
	return out
}

// Has reports whether the given rule was violated.
func (r PasswordValidationResult) Has(rule PasswordRuleID) bool {
	for _, v := range r.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}
