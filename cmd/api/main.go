// Package main is the entry point of the get5 API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"get5-api/internal/api"
	"get5-api/internal/auth"
	"get5-api/internal/cache"
	"get5-api/internal/config"
	"get5-api/internal/metrics"
	"get5-api/internal/pkg/db"
	"get5-api/internal/pkg/secret"
	"get5-api/internal/repository"
	"get5-api/internal/service"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = cmdServe(os.Args[2:])
	case "migrate":
		err = cmdMigrate(os.Args[2:])
	case "user":
		err = cmdUser(os.Args[2:])
	case "token":
		err = cmdToken(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatal().Err(err).Msgf("%s failed", os.Args[1])
	}
}

func printUsage() {
	fmt.Println("Usage: get5-api <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                                   Start the HTTP API")
	fmt.Println("  migrate                                 Apply the database schema and exit")
	fmt.Println("  user add [--admin] [--super-admin] <steam_id> <name>")
	fmt.Println("                                          Register a user (re-run to change roles)")
	fmt.Println("  token --user-id N                       Issue a bearer token for a user")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --config <dir>    Directory holding config.yaml (default: ., ./config)")
}

// loadConfig parses the common flags, loads configuration and sets up
// logging. It returns the remaining positional arguments.
func loadConfig(fs *flag.FlagSet, args []string) (*config.Config, []string, error) {
	configPath := fs.String("config", "", "directory holding config.yaml")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, nil, err
	}
	setupLogging(cfg.Log)

	return cfg, fs.Args(), nil
}

func setupLogging(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if strings.EqualFold(cfg.Format, "json") {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// zerolog.Ctx falls back to the global logger outside of requests.
	zerolog.DefaultContextLogger = &log.Logger
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg, _, err := loadConfig(fs, args)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	codec, err := secret.NewCodec([]byte(cfg.Keys.DBKey), secret.WithFailureCounter(m.DecodeFailureCounter()))
	if err != nil {
		return fmt.Errorf("key misconfigured: %w", err)
	}

	health := map[string]api.HealthCheck{"database": dbPool.HealthCheck}

	var publicCache cache.PublicServers
	if cfg.CacheEnabled() {
		rc, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rc.Close()
		publicCache = rc
		health["cache"] = rc.Ping
	} else {
		log.Info().Msg("Redis not configured, public server cache disabled")
	}

	router := api.NewRouter(api.Deps{
		Stats:          service.NewStatsService(dbPool, m),
		Servers:        service.NewServerService(dbPool, codec, publicCache, m),
		Users:          repository.NewUserRepository(dbPool),
		Auth:           auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration),
		Metrics:        m,
		Health:         health,
		LoginURL:       cfg.Auth.LoginURL,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	server := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	case err := <-serverErr:
		return fmt.Errorf("http server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Server stopped gracefully")
	return nil
}

func cmdMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	cfg, _, err := loadConfig(fs, args)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := context.Background()
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbPool.Close()

	return db.Migrate(ctx, dbPool)
}

func cmdUser(args []string) error {
	if len(args) < 1 || args[0] != "add" {
		return errors.New("usage: get5-api user add [--admin] [--super-admin] <steam_id> <name>")
	}

	fs := flag.NewFlagSet("user add", flag.ExitOnError)
	admin := fs.Bool("admin", false, "grant admin")
	superAdmin := fs.Bool("super-admin", false, "grant super-admin")
	cfg, rest, err := loadConfig(fs, args[1:])
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if len(rest) != 2 {
		return errors.New("usage: get5-api user add [--admin] [--super-admin] <steam_id> <name>")
	}

	ctx := context.Background()
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbPool.Close()

	user, err := repository.NewUserRepository(dbPool).Create(ctx, rest[0], rest[1], *admin || *superAdmin, *superAdmin)
	if err != nil {
		return err
	}

	log.Info().
		Int64("user_id", user.ID).
		Str("steam_id", user.SteamID).
		Bool("admin", user.Admin).
		Bool("super_admin", user.SuperAdmin).
		Msg("User saved")
	return nil
}

func cmdToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	userID := fs.Int64("user-id", 0, "user to issue the token for")
	cfg, _, err := loadConfig(fs, args)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if *userID <= 0 {
		return errors.New("usage: get5-api token --user-id N")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}

	ctx := context.Background()
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbPool.Close()

	if _, err := repository.NewUserRepository(dbPool).GetByID(ctx, *userID); err != nil {
		return err
	}

	token, err := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration).GenerateToken(*userID)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}
	fmt.Println(token)
	return nil
}
