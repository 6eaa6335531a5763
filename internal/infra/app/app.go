package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	red "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/config"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/database"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/i18n"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/identity"
	kafkainfra "github.com/kandyfoma/goshopperai-sub000/internal/infra/kafka"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/logger"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/mail"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/numbering"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/otp"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/paymentgw"
	redisinfra "github.com/kandyfoma/goshopperai-sub000/internal/infra/redis"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/security"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/sms"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/telemetry"
	"github.com/kandyfoma/goshopperai-sub000/internal/repository/memory"
	postgresrepo "github.com/kandyfoma/goshopperai-sub000/internal/repository/postgres"
	redisrepo "github.com/kandyfoma/goshopperai-sub000/internal/repository/redis"
	transportgrpc "github.com/kandyfoma/goshopperai-sub000/internal/transport/grpc"
	grpcinterceptors "github.com/kandyfoma/goshopperai-sub000/internal/transport/grpc/interceptors"
	"github.com/kandyfoma/goshopperai-sub000/internal/transport/http/middleware"
	"github.com/kandyfoma/goshopperai-sub000/internal/transport/http/routes"
	"github.com/kandyfoma/goshopperai-sub000/internal/usecase"
)

const metricsNamespace = "goshopper"

type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	pool       *pgxpool.Pool
	redis      *redisinfra.Client
	tracer     *telemetry.TracerProvider
	producer   *kafkainfra.Producer
	consumer   *kafkainfra.ConsumerGroup
	grpcServer *transportgrpc.Server
	grpcAddr   string
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, cfg.App.Env, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	plan, err := loadPlan(cfg.Numbering)
	if err != nil {
		return nil, err
	}
	log.Info("numbering plan loaded", zap.String("version", plan.Version()), zap.Int("countries", len(plan.Countries())))

	catalog, err := i18n.New(cfg.I18n.DefaultLanguage)
	if err != nil {
		return nil, fmt.Errorf("init message catalog: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	a := &Application{
		cfg:      cfg,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		tracer:   tracer,
		grpcAddr: fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port),
	}
	if err := a.wire(plan, catalog); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *Application) wire(plan *numbering.Plan, catalog *i18n.Catalog) error {
	cfg, log := a.cfg, a.logger

	keyProvider, err := security.NewKeyProvider(cfg.App.Env, cfg.JWT.KeyDirectory, cfg.JWT.KeyID)
	if err != nil {
		return fmt.Errorf("init key provider: %w", err)
	}
	jwtManager := security.NewJWTManager(keyProvider)
	tokens, err := security.NewTokenIssuer(jwtManager, security.TokenIssuerConfig{
		Issuer:          cfg.JWT.Issuer,
		AccessTTL:       cfg.JWT.AccessTokenTTL,
		VerificationTTL: cfg.JWT.VerificationTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("init token issuer: %w", err)
	}

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return fmt.Errorf("init password hasher: %w", err)
	}
	passwords := security.NewPasswordEvaluator()

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Namespace: metricsNamespace, Subsystem: "http"})
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}
	grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{Namespace: metricsNamespace, Subsystem: "grpc"})
	if err != nil {
		return fmt.Errorf("init grpc metrics: %w", err)
	}

	repos := postgresrepo.NewRepositories(a.pool)
	rdb := a.redis.Client()
	if err := prometheus.Register(redisinfra.NewPoolCollector(a.redis, metricsNamespace)); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return fmt.Errorf("register redis pool metrics: %w", err)
		}
	}

	events := a.eventPublisher(metrics)

	identityProvider := identity.NewProvider(repos.Users, repos.PasswordResets, hasher, mail.New(cfg.Mail, log), log,
		identity.WithResetTTL(cfg.Mail.ResetTokenTTL))

	tracker := usecase.NewLockoutTracker(lockoutStore(cfg, rdb, log), usecase.LockoutPolicyFromConfig(cfg.Lockout),
		usecase.WithLockoutAudit(repos.LoginAudit),
		usecase.WithLockoutEvents(events),
		usecase.WithLockoutMetrics(metrics),
		usecase.WithLockoutLogger(log),
	)

	rateLimitStore := redisrepo.NewRateLimitRepository(rdb, cfg.Redis.RateLimitPrefix)

	otpService := otp.NewService(redisrepo.NewOTPRepository(rdb, cfg.Redis.OTPPrefix), sms.New(cfg.SMS, log), tokens, cfg.OTP, log)
	defaultISO := cfg.Registration.DefaultCountryISO

	authService := usecase.NewAuthService(plan, identityProvider, tracker, passwords, tokens, metrics, defaultISO, log)
	registrationService := usecase.NewRegistrationService(usecase.RegistrationDependencies{
		Plan:      plan,
		Identity:  identityProvider,
		Drafts:    draftStore(cfg, rdb, log),
		OTP:       otpService,
		Profiles:  repos.Profiles,
		Passwords: passwords,
		Hasher:    hasher,
		Tokens:    tokens,
		Verifier:  tokens,
		Events:    events,
		Metrics:   metrics,
	}, cfg.Registration, usecase.WithRegistrationLogger(log))
	passwordResetService := usecase.NewPasswordResetService(identityProvider, passwords, hasher, rateLimitStore, events, plan, cfg.RateLimit, log)
	userService := usecase.NewUserService(identityProvider, repos.Profiles)
	paymentService := usecase.NewPaymentService(plan, paymentgw.NewClient(cfg.Payment, nil), repos.Payments, usecase.NewStatusHub(),
		events, metrics, cfg.Payment, defaultISO, usecase.WithPaymentLogger(log))

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.PaymentStatusTopic != "" {
		consumer, err := kafkainfra.NewConsumerGroup(cfg.Kafka, kafkainfra.NewPaymentStatusConsumer(paymentService, log), log)
		if err != nil {
			log.Warn("payment status consumer disabled", zap.Error(err))
		} else {
			a.consumer = consumer
		}
	}

	grpcSrv, err := transportgrpc.NewServer(transportgrpc.ServerDependencies{
		Identity:       transportgrpc.NewIdentityService(tokens, plan, userService, defaultISO, log),
		Tokens:         tokens,
		Metrics:        grpcMetrics,
		TracerProvider: a.tracer.TracerProvider(),
		Propagators:    otel.GetTextMapPropagator(),
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("init grpc server: %w", err)
	}
	a.grpcServer = grpcSrv

	a.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(rateLimitStore, log),
		Plan:        plan,
		Passwords:   passwords,
		Catalog:     catalog,
		Tokens:      tokens,
		JWTManager:  jwtManager,
		HTTPMetrics: httpMetrics,
		Database:    a.pool,
		Cache:       a.redis,
		Documents:   repos.Profiles,
		Services: routes.ServiceSet{
			Auth:          authService,
			Registration:  registrationService,
			Users:         userService,
			PasswordReset: passwordResetService,
			Payments:      paymentService,
		},
	})
	return nil
}

func lockoutStore(cfg *config.AppConfig, rdb *red.Client, log *zap.Logger) port.LoginAttemptStore {
	if cfg.App.LockoutStore == "memory" {
		log.Warn("login lockout counters are process local; do not run more than one instance")
		return memory.NewLockoutStore()
	}
	return redisrepo.NewLockoutRepository(rdb, cfg.Redis.LockoutPrefix)
}

func draftStore(cfg *config.AppConfig, rdb *red.Client, log *zap.Logger) port.DraftStore {
	if cfg.App.DraftStore == "memory" {
		log.Warn("registration drafts are process local; do not run more than one instance")
		return memory.NewDraftStore()
	}
	return redisrepo.NewDraftRepository(rdb, cfg.Redis.DraftPrefix)
}

func (a *Application) eventPublisher(metrics *telemetry.Metrics) port.EventPublisher {
	cfg, log := a.cfg, a.logger
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(log)
	}
	producer, err := kafkainfra.NewProducer(cfg.Kafka, log, kafkainfra.WithDeliveryFailureHook(metrics.ObserveEventFailure))
	if err != nil {
		log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(log)
	}
	a.producer = producer
	log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, cfg.App, log)
}

func loadPlan(cfg config.NumberingSettings) (*numbering.Plan, error) {
	if cfg.PlanFile == "" {
		plan, err := numbering.Default()
		if err != nil {
			return nil, fmt.Errorf("load embedded numbering plan: %w", err)
		}
		return plan, nil
	}
	plan, err := numbering.Load(cfg.PlanFile)
	if err != nil {
		return nil, fmt.Errorf("load numbering plan %s: %w", cfg.PlanFile, err)
	}
	return plan, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.close()

	grpcErrCh := make(chan error, 1)
	lis, err := net.Listen("tcp", a.grpcAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	a.logger.Info("starting gRPC server", zap.String("address", a.grpcAddr))
	go func() {
		if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			a.logger.Error("gRPC server error", zap.Error(err))
			grpcErrCh <- fmt.Errorf("run grpc server: %w", err)
		}
	}()

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	consumerErrCh := make(chan error, 1)
	if a.consumer != nil {
		go func() {
			if err := a.consumer.Run(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
				consumerErrCh <- fmt.Errorf("run payment status consumer: %w", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Payment status streams hold the response open, so no write timeout.
		IdleTimeout: 60 * time.Second,
	}

	a.logger.Info("starting account API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErrCh:
	case runErr = <-grpcErrCh:
	case runErr = <-consumerErrCh:
	}

	stopConsumer()
	a.grpcServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutdown server: %w", err)
	}
	if err := a.tracer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("tracer shutdown failed", zap.Error(err))
	}
	return runErr
}

// close releases backing connections. Safe on a partially built Application.
func (a *Application) close() {
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Warn("close consumer", zap.Error(err))
		}
		a.consumer = nil
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close producer", zap.Error(err))
		}
		a.producer = nil
	}
	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
