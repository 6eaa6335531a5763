package port

import "github.com/kandyfoma/goshopperai-sub000/internal/core/domain"

// PasswordEvaluator checks a candidate against a named policy preset.
type PasswordEvaluator interface {
	Evaluate(candidate, policy string, hints domain.PasswordHints) (domain.PasswordValidationResult, error)
	Sanitize(candidate string) string
	PasswordsMatch(a, b string) bool
}

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// AccessTokenIssuer signs and parses bearer tokens for authenticated users.
type AccessTokenIssuer interface {
	IssueAccessToken(user domain.User) (string, int, error)
	ParseAccessToken(token string) (string, error)
}

// VerificationTokenIssuer signs short-lived proof that a phone passed OTP verification.
type VerificationTokenIssuer interface {
	IssuePhoneVerification(phone string) (string, error)
	ParsePhoneVerification(token string) (string, error)
}
