package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/bcrypt"

	_ "github.com/accp-conference/api/docs" // Swagger docs (generated)
	"github.com/accp-conference/api/internal/account"
	"github.com/accp-conference/api/internal/auth"
	"github.com/accp-conference/api/internal/config"
	"github.com/accp-conference/api/internal/database"
	"github.com/accp-conference/api/internal/email"
	httpServer "github.com/accp-conference/api/internal/http"
	"github.com/accp-conference/api/internal/logging"
	"github.com/accp-conference/api/internal/ratelimit"
	"github.com/accp-conference/api/internal/registration"
	"github.com/accp-conference/api/internal/storage"
	"github.com/accp-conference/api/internal/upload"
	"github.com/accp-conference/api/internal/verification"
)

// @title           ACCP Conference Registration API
// @version         1.0
// @description     Registration, document upload and verification review for the ACCP 2026 conference.

// @contact.name   ACCP Conference Support
// @contact.email  support@accp.com

// @host      localhost:3002
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

var (
	emailFlag = &cli.StringFlag{
		Name:     "email",
		Usage:    "Login email of the staff account",
		Required: true,
	}
	passwordFlag = &cli.StringFlag{
		Name:     "password",
		Usage:    "Initial password, at least 8 characters",
		EnvVars:  []string{"STAFF_PASSWORD"},
		Required: true,
	}
	firstNameFlag = &cli.StringFlag{
		Name:     "first-name",
		Required: true,
	}
	lastNameFlag = &cli.StringFlag{
		Name:     "last-name",
		Required: true,
	}
	roleFlag = &cli.StringFlag{
		Name:  "role",
		Usage: "admin or staff",
		Value: string(account.RoleStaff),
	}
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "accp-api"
	app.Usage = "ACCP conference registration and verification API"
	app.Commands = []*cli.Command{
		{
			Name:   "serve",
			Usage:  "Run the HTTP API (default)",
			Action: serve,
		},
		{
			Name:   "migrate",
			Usage:  "Create or update the database schema",
			Action: migrate,
		},
		{
			Name:   "create-staff",
			Usage:  "Create an active backoffice account",
			Flags:  []cli.Flag{emailFlag, passwordFlag, firstNameFlag, lastNameFlag, roleFlag},
			Action: createStaff,
		},
	}
	app.Action = serve
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"token_format", cfg.Auth.TokenFormat,
	)

	db, err := openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	redisClient, err := initRedis(c.Context, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	store, err := storage.New(c.Context, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	for _, dest := range []storage.Destination{storage.DestinationVerification, storage.DestinationAbstract} {
		if err := store.Check(dest); err != nil {
			// uploads to this destination will fail until it is configured
			logger.Warn("storage not ready", "destination", string(dest), "error", err.Error())
		}
	}

	tokenService, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	accounts := account.NewRepository(db)
	mailer := email.NewService(
		email.NewSMTPSender(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPUser, cfg.Email.SMTPPassword, cfg.Email.FromAddress),
		cfg.Email.BaseURL,
		cfg.Email.SupportEmail,
	)

	authService := auth.NewService(
		accounts,
		auth.NewRedisRepository(redisClient),
		tokenService,
		logger,
		cfg.Auth.AccessTokenDuration,
		cfg.Auth.RefreshTokenDuration,
		cfg.Auth.PasswordHashCost,
	)

	handlers := httpServer.Handlers{
		Auth: auth.NewHandler(
			authService,
			!cfg.Server.IsDevelopment(),
			cfg.Auth.AccessTokenDuration,
			cfg.Auth.RefreshTokenDuration,
		),
		Registration: registration.NewHandler(
			registration.NewService(accounts, mailer, logger, cfg.Auth.PasswordHashCost),
		),
		Upload: upload.NewHandler(
			upload.NewService(store, cfg.Upload.MaxFileSize),
		),
		Verification: verification.NewHandler(
			verification.NewService(accounts, store, mailer, logger, cfg.Storage.PresignTTL),
		),
	}

	router := httpServer.NewRouter(cfg, handlers, auth.NewMiddleware(tokenService), ratelimit.NewLimiter(redisClient), logger)
	server := httpServer.NewServer(":"+cfg.Server.Port, router, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, logger)

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

func migrate(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.NewLogger(cfg.Server.IsDevelopment())

	db, err := openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(c.Context, db); err != nil {
		return err
	}
	logger.Info("database schema is up to date")
	return nil
}

func createStaff(c *cli.Context) error {
	role := account.Role(strings.ToLower(c.String(roleFlag.Name)))
	if !role.IsStaff() {
		return fmt.Errorf("--role must be %q or %q", account.RoleAdmin, account.RoleStaff)
	}
	password := c.String(passwordFlag.Name)
	if len(password) < 8 || len(password) > 72 {
		return errors.New("--password must be between 8 and 72 characters")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.NewLogger(cfg.Server.IsDevelopment())

	db, err := openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cfg.Auth.PasswordHashCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	created, err := account.NewRepository(db).CreateStaff(
		c.Context,
		strings.ToLower(strings.TrimSpace(c.String(emailFlag.Name))),
		string(hash),
		c.String(firstNameFlag.Name),
		c.String(lastNameFlag.Name),
		role,
	)
	if err != nil {
		if errors.Is(err, account.ErrDuplicate) {
			return fmt.Errorf("an account with email %s already exists", c.String(emailFlag.Name))
		}
		return err
	}

	logger.Info("staff account created", "account_id", created.ID, "email", created.Email, "role", string(created.Role))
	return nil
}

func openDB(cfg config.DatabaseConfig) (*bun.DB, error) {
	return database.Open(cfg.ConnectionString(), database.PoolOptions{
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
}

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
