package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	_ "github.com/redmonkez12/nonprofit-portal/docs" // Swagger docs
	"github.com/redmonkez12/nonprofit-portal/internal/auth"
	"github.com/redmonkez12/nonprofit-portal/internal/collaboration"
	"github.com/redmonkez12/nonprofit-portal/internal/config"
	"github.com/redmonkez12/nonprofit-portal/internal/database"
	"github.com/redmonkez12/nonprofit-portal/internal/email"
	httpServer "github.com/redmonkez12/nonprofit-portal/internal/http"
	"github.com/redmonkez12/nonprofit-portal/internal/inquiry"
	"github.com/redmonkez12/nonprofit-portal/internal/logging"
	"github.com/redmonkez12/nonprofit-portal/internal/ratelimit"
	"github.com/redmonkez12/nonprofit-portal/internal/telemetry"
	"github.com/redmonkez12/nonprofit-portal/internal/user"
	"github.com/redmonkez12/nonprofit-portal/internal/verification"
)

// @title           Nonprofit Portal API
// @version         1.0
// @description     Accounts, contact messages and collaboration requests confirmed by emailed one-time codes.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
	)

	// Telemetry has to be global before the verification machines are built
	providers, err := telemetry.NewProviders(ctx, cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	providers.SetGlobal()
	defer providers.Shutdown(context.Background())

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	redisClient, err := initRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	rateLimiter := ratelimit.NewLimiter(redisClient, cfg.RateLimit)

	tokens, err := newTokenService(cfg.Auth)
	if err != nil {
		return err
	}

	templates, err := email.LoadTemplates(email.Site{
		Name:    cfg.Email.SiteName,
		URL:     cfg.Email.SiteURL,
		CodeTTL: cfg.Verification.CodeTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to load email templates: %w", err)
	}

	var notifier verification.Notifier
	if cfg.Server.IsDevelopment() && cfg.Email.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, verification emails are written to the log")
		notifier = email.NewLogNotifier(templates, logger)
	} else {
		notifier = email.NewSMTPNotifier(cfg.Email, templates, logger)
	}

	codes := verification.NewGenerator(cfg.Verification.CodeTTL)

	// Repositories
	userRepo := user.NewRepository(db)
	inquiryRepo := inquiry.NewRepository(db)
	collaborationRepo := collaboration.NewRepository(db)

	// Verification machines
	signup := verification.NewMachine(auth.SignupFlow(), userRepo.SignupSubjects(), notifier, codes, logger)
	login := verification.NewMachine(auth.LoginFlow(), userRepo.LoginSubjects(), notifier, codes, logger)
	inquiries := verification.NewMachine(inquiry.Flow(), inquiryRepo, notifier, codes, logger)
	collaborations := verification.NewMachine(collaboration.Flow(), collaborationRepo, notifier, codes, logger)

	authService := auth.NewService(
		userRepo,
		auth.NewPasswordHasher(cfg.Auth.PasswordMemoryKiB),
		signup,
		login,
		tokens,
		logger,
		cfg.Auth.SessionDuration,
	)

	cookie := auth.CookieConfig{
		Name:   cfg.Auth.CookieName,
		Secure: !cfg.Server.IsDevelopment(),
		MaxAge: cfg.Auth.SessionDuration,
	}

	router := httpServer.NewRouter(cfg, httpServer.Handlers{
		Auth:           auth.NewHandler(authService, rateLimiter, cookie),
		AuthMiddleware: auth.NewMiddleware(tokens, userRepo, cfg.Auth.CookieName),
		Inquiries:      inquiry.NewHandler(inquiry.NewService(inquiries, inquiryRepo), rateLimiter),
		Collaborations: collaboration.NewHandler(collaboration.NewService(collaborations, collaborationRepo), rateLimiter),
		Limiter:        rateLimiter,
	}, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

func newTokenService(cfg config.AuthConfig) (auth.TokenService, error) {
	if cfg.TokenFormat == config.TokenFormatJWT {
		svc, err := auth.NewJWTService(cfg.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
		}
		return svc, nil
	}

	svc, err := auth.NewPasetoService(cfg.PasetoKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PASETO service: %w", err)
	}
	return svc, nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
