package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry, issuer or
// purpose checks.
var ErrInvalidToken = errors.New("jwt: invalid token")

const (
	purposeAccess            = "access"
	purposePhoneVerification = "phone_verification"

	defaultAccessTokenTTL       = time.Hour
	defaultVerificationTokenTTL = 30 * time.Minute
)

// TokenClaims is shared by access and phone verification tokens; Purpose keeps
// one kind from being replayed as the other.
type TokenClaims struct {
	Purpose string `json:"pur"`
	Phone   string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuerConfig configures issuer name and token lifetimes.
type TokenIssuerConfig struct {
	Issuer          string
	AccessTTL       time.Duration
	VerificationTTL time.Duration
}

// TokenIssuer signs RS256 tokens with the manager's active key.
type TokenIssuer struct {
	manager *JWTManager
	cfg     TokenIssuerConfig
	now     func() time.Time
}

// TokenIssuerOption customises a TokenIssuer.
type TokenIssuerOption func(*TokenIssuer)

// WithTokenClock overrides the time source.
func WithTokenClock(now func() time.Time) TokenIssuerOption {
	return func(t *TokenIssuer) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(manager *JWTManager, cfg TokenIssuerConfig, opts ...TokenIssuerOption) (*TokenIssuer, error) {
	if !manager.Ready() {
		return nil, fmt.Errorf("jwt: key provider not configured")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("jwt: issuer is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTokenTTL
	}
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = defaultVerificationTokenTTL
	}

	issuer := &TokenIssuer{manager: manager, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer, nil
}

// IssueAccessToken returns a signed token for user and its lifetime in seconds.
func (t *TokenIssuer) IssueAccessToken(user domain.User) (string, int, error) {
	if strings.TrimSpace(user.ID) == "" {
		return "", 0, fmt.Errorf("jwt: user id is required")
	}
	signed, err := t.sign(purposeAccess, user.ID, user.Phone, t.cfg.AccessTTL)
	if err != nil {
		return "", 0, err
	}
	return signed, int(t.cfg.AccessTTL / time.Second), nil
}

// ParseAccessToken returns the user id carried by a valid access token.
func (t *TokenIssuer) ParseAccessToken(token string) (string, error) {
	claims, err := t.parse(token, purposeAccess)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// IssuePhoneVerification proves that phone passed OTP verification.
func (t *TokenIssuer) IssuePhoneVerification(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", fmt.Errorf("jwt: phone is required")
	}
	return t.sign(purposePhoneVerification, phone, phone, t.cfg.VerificationTTL)
}

// ParsePhoneVerification returns the verified phone.
func (t *TokenIssuer) ParsePhoneVerification(token string) (string, error) {
	claims, err := t.parse(token, purposePhoneVerification)
	if err != nil {
		return "", err
	}
	return claims.Phone, nil
}

func (t *TokenIssuer) sign(purpose, subject, phone string, ttl time.Duration) (string, error) {
	now := t.now().UTC()
	claims := &TokenClaims{
		Purpose: purpose,
		Phone:   phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    t.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	kid, signingKey, err := t.manager.SigningKey()
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

func (t *TokenIssuer) parse(raw, purpose string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, t.manager.Keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(t.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: unexpected purpose %q", ErrInvalidToken, claims.Purpose)
	}
	return claims, nil
}
