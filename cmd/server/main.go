package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"

	"identity-service/internal/audit"
	auditrepo "identity-service/internal/audit/repository"
	"identity-service/internal/config"
	"identity-service/internal/db"
	"identity-service/internal/db/migrate"
	"identity-service/internal/devotp"
	"identity-service/internal/email"
	healthhandler "identity-service/internal/health/handler"
	"identity-service/internal/identity/federation"
	identityservice "identity-service/internal/identity/service"
	"identity-service/internal/logger"
	"identity-service/internal/otp"
	otprepo "identity-service/internal/otp/repository"
	"identity-service/internal/otp/sms"
	"identity-service/internal/policy/engine"
	"identity-service/internal/security"
	"identity-service/internal/server"
	"identity-service/internal/server/middleware"
	"identity-service/internal/telemetry"
	telemetryotel "identity-service/internal/telemetry/otel"
	"identity-service/internal/telemetry/producer"
	userrepo "identity-service/internal/user/repository"
	"identity-service/internal/verification"
	verificationrepo "identity-service/internal/verification/repository"
)

const serviceName = "identity-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("config: DATABASE_URL must be set")
	}

	zl, err := logger.New(cfg.Env, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		return err
	}
	providers.SetGlobal()

	if err := migrate.Run(cfg.DatabaseURL, migrate.Up, 0); err != nil {
		return err
	}
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	verRepo, otpRepo, closeLedgers, err := ledgerRepositories(cfg, pool)
	if err != nil {
		return err
	}
	defer closeLedgers()

	tokens, err := tokenProvider(cfg)
	if err != nil {
		return err
	}

	roles, err := engine.NewOPAEvaluatorFromFile(ctx, cfg.RolePolicyFile)
	if err != nil {
		return err
	}

	renderer := email.NewRenderer(cfg.FrontendURL, cfg.VerificationTTL())
	var mailer email.Dispatcher = email.NewLogDispatcher(renderer, zl)
	if cfg.EmailFrom != "" {
		ses, err := email.NewSESDispatcher(ctx, cfg.AWSRegion, cfg.EmailFrom, renderer, zl)
		if err != nil {
			return err
		}
		mailer = ses
	}

	var sender sms.Sender = sms.NopSender{}
	if cfg.SMSLocalAPIKey != "" {
		sender = sms.NewSMSLocalClient(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender)
	} else {
		zl.Warn("SMS_LOCAL_API_KEY is empty; OTP codes are not delivered by SMS")
	}

	events := telemetry.MultiEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if stream := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.AuthEventsTopic); stream != nil {
		events = append(events, stream)
		defer func() { _ = stream.Close() }()
	}

	users := userrepo.NewPostgresRepository(pool)
	deps := identityservice.Deps{
		Users:         users,
		Hasher:        security.NewHasher(cfg.BcryptCost),
		Tokens:        tokens,
		Verifications: verification.NewLedger(verRepo, cfg.VerificationTTL(), nil),
		OTPs:          otp.NewLedger(otpRepo, cfg.OTPLifetime(), nil),
		Mailer:        mailer,
		SMS:           sender,
		LinkedIn:      federation.NewLinkedInClient(cfg.LinkedInTokenURL, cfg.LinkedInEmailURL, cfg.FederationTimeout()),
		Roles:         roles,
		Events:        events,
		Logger:        zl,
	}
	var devStore devotp.Store
	if cfg.OTPReturnToClient {
		devStore = devotp.NewMemoryStore()
		deps.DevOTP = devStore
		zl.Warn("dev OTP mode enabled; codes are returned to clients and served on /dev/otp")
	}
	auth := identityservice.NewAuthService(deps)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checker := healthhandler.NewChecker(pool, roles)

	router := server.NewRouter(server.Deps{
		Auth:           auth,
		Accounts:       auth,
		Tokens:         tokens,
		Users:          users,
		Health:         checker,
		Audit:          audit.NewLogger(auditrepo.NewPostgresRepository(pool), middleware.ClientIP, zl),
		Metrics:        middleware.NewMetrics(reg),
		Gatherer:       reg,
		DevOTP:         devStore,
		AllowedOrigins: []string{cfg.FrontendURL},
		Logger:         zl,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		zl.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	hs := health.NewServer()
	grpcServer := server.NewGRPCServer(hs)
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		go server.WatchHealth(ctx, hs, checker, server.DefaultHealthInterval, zl)
		go func() {
			zl.Info("gRPC health server listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		zl.Error("server failed", zap.Error(err))
	}

	zl.Info("shutting down")
	hs.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Warn("HTTP shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	// Let in-flight async auth events finish before the exporters go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		zl.Warn("otel shutdown", zap.Error(err))
	}
	zl.Info("stopped")
	return nil
}

// ledgerRepositories returns the verification and OTP stores for the configured backend.
func ledgerRepositories(cfg *config.Config, pool *pgxpool.Pool) (verification.Repository, otp.Repository, func(), error) {
	if cfg.LedgerBackend != config.LedgerBackendRedis {
		return verificationrepo.NewPostgresRepository(pool), otprepo.NewPostgresRepository(pool), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	client := redis.NewClient(opts)
	return verificationrepo.NewRedisRepository(client),
		otprepo.NewRedisRepository(client, cfg.RedisRetention()),
		func() { _ = client.Close() },
		nil
}

func tokenProvider(cfg *config.Config) (*security.TokenProvider, error) {
	if cfg.HasKeyPair() {
		priv, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
		if err != nil {
			return nil, err
		}
		return security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL())
	}
	if cfg.JWTSecretKey == "" {
		return nil, errors.New("config: JWT_SECRET_KEY or JWT_PRIVATE_KEY/JWT_PUBLIC_KEY must be set")
	}
	return security.NewHMACTokenProvider([]byte(cfg.JWTSecretKey), cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL())
}
