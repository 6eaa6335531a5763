package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kandyfoma/goshopperai-sub000/internal/infra/config"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/i18n"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/numbering"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/security"
	"github.com/kandyfoma/goshopperai-sub000/internal/transport/http/handlers"
	"github.com/kandyfoma/goshopperai-sub000/internal/transport/http/middleware"
	"github.com/kandyfoma/goshopperai-sub000/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth          *usecase.AuthService
	Registration  *usecase.RegistrationService
	Users         *usecase.UserService
	PasswordReset *usecase.PasswordResetService
	Payments      *usecase.PaymentService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	Plan        *numbering.Plan
	Passwords   *security.PasswordEvaluator
	Catalog     *i18n.Catalog
	Tokens      middleware.AccessTokenParser
	JWTManager  *security.JWTManager
	HTTPMetrics *middleware.HTTPMetrics
	Database    DatabaseChecker
	Cache       CacheChecker
	Documents   DocumentChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// DocumentChecker exposes readiness of the profile document store.
type DocumentChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Plan == nil {
		deps.Plan = mustDefaultPlan()
	}
	if deps.Passwords == nil {
		deps.Passwords = security.NewPasswordEvaluator()
	}
	if deps.Catalog == nil {
		deps.Catalog = mustCatalog(deps.Config.I18n.DefaultLanguage)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Correlation())
	r.Use(middleware.Logger(deps.Logger))
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Handler())
	}
	if len(deps.Config.App.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	}
	r.Use(middleware.Language(deps.Catalog))

	respond := handlers.NewResponder(deps.Catalog, deps.Passwords, deps.Logger)
	if deps.RateLimiter != nil {
		deps.RateLimiter.WithRejectHandler(func(c *gin.Context, rule string, retryAfter time.Duration) {
			respond.RespondError(c, &usecase.RateLimitExceededError{Scope: rule, RetryAfter: retryAfter})
		})
	}

	healthOptions := make([]handlers.HealthOption, 0, 3)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	if deps.Documents != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("documents", deps.Documents.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	jwksHandler := handlers.NewJWKSHandler(deps.JWTManager, respond)
	r.GET("/.well-known/jwks.json", jwksHandler.Keys)

	defaultISO := deps.Config.Registration.DefaultCountryISO

	api := r.Group("/api/v1")
	{
		phoneHandler := handlers.NewPhoneHandler(deps.Plan, defaultISO, respond)
		phoneHandler.RegisterRoutes(api)

		passwordHandler := handlers.NewPasswordHandler(deps.Services.PasswordReset, deps.Passwords, deps.Plan, defaultISO, respond)
		passwordHandler.RegisterRoutes(api.Group("/password"), buildRule(deps, "password_reset_ip", deps.Config.RateLimit.PasswordResetMaxAttempts, middleware.ClientIPIdentifier())...)

		if deps.Services.Auth != nil {
			authHandler := handlers.NewAuthHandler(deps.Services.Auth, respond)
			authHandler.RegisterRoutes(api.Group("/auth"), buildRule(deps, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts, middleware.ClientIPIdentifier())...)
		}

		if deps.Services.Registration != nil {
			registrationHandler := handlers.NewRegistrationHandler(deps.Services.Registration, respond)
			registrationHandler.RegisterRoutes(api.Group("/registration"),
				append(
					buildRule(deps, "phone_check_ip", deps.Config.RateLimit.PhoneCheckMaxAttempts, middleware.ClientIPIdentifier()),
					buildRule(deps, "phone_check_number", deps.Config.RateLimit.PhoneCheckMaxAttempts, middleware.JSONFieldIdentifier("phone"))...,
				),
				buildRule(deps, "otp_draft", deps.Config.RateLimit.OTPMaxAttempts, middleware.ParamIdentifier("id")),
			)
		}

		if deps.Services.Payments != nil {
			paymentHandler := handlers.NewPaymentHandler(deps.Services.Payments, deps.Config.Payment.WebhookSecret, respond)
			paymentHandler.RegisterWebhookRoutes(api.Group("/webhooks"))

			if deps.Tokens != nil {
				paymentGroup := api.Group("/payments")
				paymentGroup.Use(middleware.RequireAuth(deps.Tokens))
				paymentHandler.RegisterProtectedRoutes(paymentGroup)
			}
		}

		if deps.Tokens != nil {
			authMiddleware := middleware.RequireAuth(deps.Tokens)

			protectedPassword := api.Group("/password")
			protectedPassword.Use(authMiddleware)
			passwordHandler.RegisterProtectedRoutes(protectedPassword)

			if deps.Services.Users != nil {
				profileGroup := api.Group("/profile")
				profileGroup.Use(authMiddleware)
				handlers.NewProfileHandler(deps.Services.Users, respond).RegisterProtectedRoutes(profileGroup)
			}
		}
	}

	return r
}

func buildRule(deps Dependencies, name string, limit int, identifier middleware.IdentifierFunc) []gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: identifier,
	}
	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}

func mustDefaultPlan() *numbering.Plan {
	plan, err := numbering.Default()
	if err != nil {
		panic(err)
	}
	return plan
}

func mustCatalog(lang string) *i18n.Catalog {
	catalog, err := i18n.New(lang)
	if err != nil {
		panic(err)
	}
	return catalog
}
