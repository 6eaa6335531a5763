// Package i18n holds the user-facing message catalog and language negotiation.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
)

// Message keys for errors that are not password rules or provider codes.
const (
	KeyInvalidPayload       = "invalid_payload"
	KeyInvalidPhone         = "invalid_phone"
	KeyUnknownCarrier       = "unknown_carrier"
	KeyUnsupportedCountry   = "unsupported_country"
	KeyPhoneAlreadyExists   = "phone_already_exists"
	KeyPasswordPolicy       = "password_policy"
	KeyTermsNotAccepted     = "terms_not_accepted"
	KeyDraftNotFound        = "draft_not_found"
	KeyDraftExpired         = "draft_expired"
	KeyInvalidTransition    = "invalid_transition"
	KeyOTPInvalidFormat     = "otp_invalid_format"
	KeyOTPInvalid           = "otp_invalid"
	KeyOTPExpired           = "otp_expired"
	KeyOTPAttemptsExceeded  = "otp_attempts_exceeded"
	KeyOTPResendTooSoon     = "otp_resend_too_soon"
	KeyAccountLocked        = "account_locked"
	KeyLoginDelayed         = "login_delayed"
	KeyAttemptsRemaining    = "attempts_remaining"
	KeyAccountCreation      = "account_creation_failed"
	KeyPaymentNotFound      = "payment_not_found"
	KeyInvalidAmount        = "invalid_amount"
	KeyCarrierRequired      = "carrier_required"
	KeyUnsupportedCurrency  = "unsupported_currency"
	KeyPaymentGateway       = "payment_gateway_unavailable"
	KeyInvalidSignature     = "invalid_signature"
	KeyUnauthorized         = "unauthorized"
	KeyRateLimited          = "rate_limited"
	KeyInternal             = "internal_error"
	KeyServiceUnavailable   = "service_unavailable"
	KeyPasswordResetSent    = "password_reset_sent"
	KeyPasswordChanged      = "password_changed"
	KeyRegistrationAbandon  = "registration_abandoned"
	KeyVerificationRequired = "verification_required"
)

var supported = []language.Tag{language.French, language.English}

type entry struct {
	key string
	fr  string
	en  string
}

var entries = []entry{
	{string(domain.RuleMinLength), "Le mot de passe doit contenir au moins %d caractères", "Password must be at least %d characters long"},
	{string(domain.RuleDigit), "Le mot de passe doit contenir au moins un chiffre", "Password must include at least one digit"},
	{string(domain.RuleUppercase), "Le mot de passe doit contenir au moins une majuscule", "Password must include at least one uppercase letter"},
	{string(domain.RuleSymbol), "Le mot de passe doit contenir au moins un symbole", "Password must include at least one symbol"},
	{string(domain.RuleSimilarToPhone), "Le mot de passe ne doit pas ressembler à votre numéro de téléphone", "Password must not resemble your phone number"},
	{string(domain.RuleSimilarToName), "Le mot de passe ne doit pas ressembler à votre nom", "Password must not resemble your name"},
	{string(domain.RuleMismatch), "Les mots de passe ne correspondent pas", "Passwords do not match"},
	{string(domain.RuleDifferent), "Le nouveau mot de passe doit être différent de l'actuel", "New password must be different from the current one"},

	{domain.AuthWrongPassword, "Mot de passe incorrect", "Incorrect password"},
	{domain.AuthUserNotFound, "Aucun compte ne correspond à cet identifiant", "No account matches this identifier"},
	{domain.AuthTooManyRequests, "Trop de tentatives. Réessayez plus tard", "Too many attempts. Try again later"},
	{domain.AuthNetworkFailed, "Erreur réseau. Vérifiez votre connexion", "Network error. Check your connection"},
	{domain.AuthEmailAlreadyInUse, "Cette adresse e-mail est déjà utilisée", "This email address is already in use"},
	{domain.AuthPhoneAlreadyExists, "Ce numéro de téléphone est déjà enregistré", "This phone number is already registered"},
	{domain.AuthWeakPassword, "Le mot de passe est trop faible", "The password is too weak"},
	{domain.AuthInvalidActionCode, "Le lien de réinitialisation est invalide", "The reset link is invalid"},
	{domain.AuthExpiredActionCode, "Le lien de réinitialisation a expiré", "The reset link has expired"},
	{domain.AuthRequiresRecentLogin, "Veuillez vous reconnecter pour continuer", "Please sign in again to continue"},
	{domain.AuthInvalidCredential, "Identifiants invalides", "Invalid credentials"},
	{domain.AuthInternalError, "Une erreur interne est survenue", "An internal error occurred"},
	{domain.AuthInvalidPhoneNumber, "Numéro de téléphone invalide", "Invalid phone number"},
	{domain.AuthInvalidVerification, "Code de vérification invalide", "Invalid verification code"},
	{domain.AuthVerificationRequired, "Le numéro de téléphone doit être vérifié", "The phone number must be verified"},

	{KeyInvalidPayload, "Requête invalide", "Invalid request"},
	{KeyInvalidPhone, "Format de numéro de téléphone invalide", "Invalid phone number format"},
	{KeyUnknownCarrier, "Opérateur mobile non reconnu pour ce numéro", "Mobile operator not recognised for this number"},
	{KeyUnsupportedCountry, "Pays non pris en charge", "Country not supported"},
	{KeyPhoneAlreadyExists, "Ce numéro de téléphone est déjà enregistré", "This phone number is already registered"},
	{KeyPasswordPolicy, "Le mot de passe ne respecte pas les règles", "The password does not meet the requirements"},
	{KeyTermsNotAccepted, "Vous devez accepter les conditions d'utilisation", "You must accept the terms of use"},
	{KeyDraftNotFound, "Session d'inscription introuvable", "Registration session not found"},
	{KeyDraftExpired, "Session d'inscription expirée", "Registration session expired"},
	{KeyInvalidTransition, "Étape d'inscription non autorisée", "Registration step not allowed"},
	{KeyOTPInvalidFormat, "Le code doit contenir 6 chiffres", "The code must have 6 digits"},
	{KeyOTPInvalid, "Code de vérification incorrect", "Incorrect verification code"},
	{KeyOTPExpired, "Le code de vérification a expiré", "The verification code has expired"},
	{KeyOTPAttemptsExceeded, "Trop de codes incorrects. Demandez un nouveau code", "Too many incorrect codes. Request a new code"},
	{KeyOTPResendTooSoon, "Veuillez patienter %d secondes avant de renvoyer le code", "Please wait %d seconds before resending the code"},
	{KeyAccountLocked, "Compte temporairement verrouillé. Réessayez dans %d minute(s)", "Account temporarily locked. Try again in %d minute(s)"},
	{KeyLoginDelayed, "Veuillez patienter %d seconde(s) avant de réessayer", "Please wait %d second(s) before trying again"},
	{KeyAttemptsRemaining, "Il vous reste %d tentative(s)", "%d attempt(s) remaining"},
	{KeyAccountCreation, "Votre numéro est vérifié mais la création du compte a échoué. Réessayez", "Your number is verified but account creation failed. Please retry"},
	{KeyPaymentNotFound, "Paiement introuvable", "Payment not found"},
	{KeyInvalidAmount, "Le montant doit être positif", "The amount must be positive"},
	{KeyCarrierRequired, "Ce numéro ne correspond à aucun opérateur mobile money", "This number matches no mobile-money operator"},
	{KeyUnsupportedCurrency, "Devise non prise en charge", "Currency not supported"},
	{KeyPaymentGateway, "Le service de paiement est indisponible", "The payment service is unavailable"},
	{KeyInvalidSignature, "Signature invalide", "Invalid signature"},
	{KeyUnauthorized, "Authentification requise", "Authentication required"},
	{KeyRateLimited, "Trop de requêtes", "Too many requests"},
	{KeyInternal, "Une erreur interne est survenue", "An internal error occurred"},
	{KeyServiceUnavailable, "Service temporairement indisponible", "Service temporarily unavailable"},
	{KeyPasswordResetSent, "Si un compte existe, un e-mail de réinitialisation a été envoyé", "If an account exists, a reset email has been sent"},
	{KeyPasswordChanged, "Mot de passe modifié", "Password changed"},
	{KeyRegistrationAbandon, "Inscription annulée", "Registration cancelled"},
	{KeyVerificationRequired, "Le numéro de téléphone doit être vérifié", "The phone number must be verified"},
}

// Catalog resolves message keys for a negotiated language.
type Catalog struct {
	fallback language.Tag
	ordered  []language.Tag
	matcher  language.Matcher
	builder  *catalog.Builder
}

// New builds the catalog. defaultLang is used when negotiation finds nothing
// better; unsupported values fall back to French.
func New(defaultLang string) (*Catalog, error) {
	builder := catalog.NewBuilder(catalog.Fallback(language.French))
	for _, e := range entries {
		if err := builder.SetString(language.French, e.key, e.fr); err != nil {
			return nil, err
		}
		if err := builder.SetString(language.English, e.key, e.en); err != nil {
			return nil, err
		}
	}

	fallback := language.French
	if tag, err := language.Parse(defaultLang); err == nil {
		matcher := language.NewMatcher(supported)
		_, idx, conf := matcher.Match(tag)
		if conf != language.No {
			fallback = supported[idx]
		}
	}

	ordered := []language.Tag{fallback}
	for _, tag := range supported {
		if tag != fallback {
			ordered = append(ordered, tag)
		}
	}

	return &Catalog{
		fallback: fallback,
		ordered:  ordered,
		matcher:  language.NewMatcher(ordered),
		builder:  builder,
	}, nil
}

// Match negotiates an Accept-Language header value against the supported set.
func (c *Catalog) Match(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return c.fallback
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return c.fallback
	}
	_, idx, conf := c.matcher.Match(tags...)
	if conf == language.No || idx < 0 || idx >= len(c.ordered) {
		return c.fallback
	}
	return c.ordered[idx]
}

// Fallback returns the default language.
func (c *Catalog) Fallback() language.Tag { return c.fallback }

// Text renders key in lang. Unknown keys render as the key itself.
func (c *Catalog) Text(lang language.Tag, key string, args ...any) string {
	printer := message.NewPrinter(lang, message.Catalog(c.builder))
	return printer.Sprintf(key, args...)
}

// Violations localizes password violations. minLength fills the length rule.
func (c *Catalog) Violations(lang language.Tag, violations []domain.PasswordViolation, minLength int) []domain.PasswordViolation {
	out := make([]domain.PasswordViolation, 0, len(violations))
	for _, v := range violations {
		var msg string
		if v.Rule == domain.RuleMinLength {
			msg = c.Text(lang, string(v.Rule), minLength)
		} else {
			msg = c.Text(lang, string(v.Rule))
		}
		out = append(out, domain.PasswordViolation{Rule: v.Rule, Message: msg})
	}
	return out
}

// AuthMessage maps a provider code to its display message.
func (c *Catalog) AuthMessage(lang language.Tag, code string) string {
	if code == "" {
		code = domain.AuthInternalError
	}
	msg := c.Text(lang, code)
	if msg == code {
		return c.Text(lang, domain.AuthInternalError)
	}
	return msg
}
