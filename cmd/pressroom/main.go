package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pressroom-hq/pressroom/cmd/pressroom/cli"
	"github.com/pressroom-hq/pressroom/internal/abac"
	"github.com/pressroom-hq/pressroom/internal/app"
	"github.com/pressroom-hq/pressroom/internal/auth"
	"github.com/pressroom-hq/pressroom/internal/observability"
	"github.com/pressroom-hq/pressroom/internal/platform/cache"
	"github.com/pressroom-hq/pressroom/internal/platform/db"
	"github.com/pressroom-hq/pressroom/internal/posts"
	"github.com/pressroom-hq/pressroom/internal/roles"
	"github.com/pressroom-hq/pressroom/internal/shared"
	"github.com/pressroom-hq/pressroom/internal/users"
	"github.com/pressroom-hq/pressroom/jobs"

	"github.com/hibiken/asynq"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 {
		if err := runSubcommand(ctx, cfg, logger, os.Args[1:]); err != nil {
			logger.Error("subcommand", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "pressroom_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, jobClient, logger)

	ruleStore := abac.NewPGRuleStore(pool)
	compiler := abac.NewCompiler(ruleStore, logger)
	guard := abac.Guard{
		Identity: usersService,
		Compiler: compiler,
		Metrics:  metrics,
		Audit:    auditLogger,
		Logger:   logger,
	}

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, guard, sessionManager, csrfManager)

	usersHandler := users.NewHandler(logger, usersService, guard)

	postsRepo := posts.NewRepository(pool)
	postsService := posts.NewService(postsRepo, logger)
	postsHandler := posts.NewHandler(logger, postsService, guard)

	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo, auditLogger, logger)
	rolesHandler := roles.NewHandler(logger, rolesService, guard)

	router := app.NewRouter(app.RouterParams{
		Middleware: app.MiddlewareConfig{
			Logger:         logger,
			Config:         cfg,
			SessionManager: sessionManager,
			CSRFManager:    csrfManager,
			Metrics:        metrics,
		},
		AuthHandler:  authHandler,
		UsersHandler: usersHandler,
		PostsHandler: postsHandler,
		RolesHandler: rolesHandler,
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func runSubcommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	switch args[0] {
	case "seed":
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := cli.NewSeeder(pool).Run(ctx); err != nil {
			return err
		}
		logger.Info("seed complete")
		return nil
	case "jobs":
		if len(args) < 2 {
			return errors.New("usage: pressroom jobs <trigger|stats> [name]")
		}
		jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
		defer func() {
			if err := jobsCLI.Close(); err != nil {
				logger.Warn("jobs cli close", slog.Any("error", err))
			}
		}()
		switch args[1] {
		case "trigger":
			if len(args) < 3 {
				return errors.New("usage: pressroom jobs trigger <name>")
			}
			info, err := jobsCLI.Trigger(ctx, args[2])
			if err != nil {
				return err
			}
			logger.Info("job enqueued", slog.String("id", info.ID), slog.String("type", info.Type))
			return nil
		case "stats":
			stats, err := jobsCLI.InspectQueue(ctx)
			if err != nil {
				return err
			}
			logger.Info("queue stats",
				slog.String("queue", stats.Queue),
				slog.Int("pending", stats.Pending),
				slog.Int("active", stats.Active),
				slog.Int("scheduled", stats.Scheduled),
				slog.Int("retry", stats.Retry))
			return nil
		default:
			return fmt.Errorf("unknown jobs subcommand %q", args[1])
		}
	default:
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}
