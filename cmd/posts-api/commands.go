package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/deppfellow/posts-api/internal/config"
	"github.com/deppfellow/posts-api/internal/database"
	"github.com/deppfellow/posts-api/internal/handler"
	"github.com/deppfellow/posts-api/internal/lib/job"
	"github.com/deppfellow/posts-api/internal/lib/token"
	"github.com/deppfellow/posts-api/internal/logger"
	"github.com/deppfellow/posts-api/internal/middleware"
	"github.com/deppfellow/posts-api/internal/repository"
	"github.com/deppfellow/posts-api/internal/router"
	"github.com/deppfellow/posts-api/internal/server"
	"github.com/deppfellow/posts-api/internal/service"
)

const shutdownTimeout = 30 * time.Second

// runtime is what every command needs before doing its own work.
type runtime struct {
	cfg           *config.Config
	log           zerolog.Logger
	loggerService *logger.LoggerService
}

func setup() (*runtime, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	loggerService, err := logger.NewLoggerService(cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("failed to start New Relic: %w", err)
	}

	return &runtime{
		cfg:           cfg,
		log:           logger.NewLoggerWithService(cfg.Observability, loggerService),
		loggerService: loggerService,
	}, nil
}

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.loggerService.Shutdown()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, rt, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, rt *runtime, migrate bool) error {
	log := rt.log

	if migrate {
		if err := database.Migrate(ctx, &log, rt.cfg); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	srv, err := server.New(ctx, rt.cfg, &log, rt.loggerService)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	repos := repository.NewRepositories(srv)
	services, err := service.NewService(srv, repos)
	if err != nil {
		return fmt.Errorf("could not create services: %w", err)
	}

	// Jobs need Redis; the API does not.
	if err := srv.Job.Start(); err != nil {
		log.Error().Err(err).Msg("background jobs disabled")
	}

	handlers := handler.NewHandlers(srv, services)
	mws := middleware.NewMiddlewares(srv, token.NewManager(rt.cfg.Auth))
	srv.SetupHTTPServer(router.NewRouter(srv, handlers, mws))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	select {
	case err = <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("server stopped unexpectedly")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return errors.Join(err, fmt.Errorf("server forced to shutdown: %w", shutdownErr))
	}

	log.Info().Msg("server exited properly")
	return err
}

func newMigrateCmd() *cobra.Command {
	var target int32

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.loggerService.Shutdown()

			return database.MigrateTo(cmd.Context(), &rt.log, rt.cfg, target)
		},
	}

	cmd.Flags().Int32Var(&target, "to", database.LatestVersion, "schema version to migrate to (-1 for latest, 0 to drop everything)")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		userID    int64
		email     string
		skipCheck bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an existing user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.loggerService.Shutdown()

			if !skipCheck {
				db, err := database.New(cmd.Context(), rt.cfg, &rt.log, rt.loggerService)
				if err != nil {
					return err
				}
				defer db.Close()

				user, err := repository.NewUserRepository(db.Pool).FindByID(cmd.Context(), userID)
				if err != nil {
					return err
				}
				if user == nil {
					return fmt.Errorf("user %d does not exist", userID)
				}
				if email == "" {
					email = user.Email
				}
			}

			signed, expiresAt, err := token.NewManager(rt.cfg.Auth).Issue(userID, email)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), signed)
			rt.log.Info().
				Int64("user_id", userID).
				Time("expires_at", expiresAt).
				Msg("token issued")
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user-id", 0, "users.id the token authenticates")
	cmd.Flags().StringVar(&email, "email", "", "email claim (defaults to the user's email)")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "do not look the user up in the database")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func newPurgeCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Queue a one-off purge of soft-deleted posts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.loggerService.Shutdown()

			if olderThan == 0 {
				olderThan = rt.cfg.Jobs.PurgeRetention
			}

			jobs := job.NewJobService(&rt.log, rt.cfg)
			defer jobs.Stop()

			info, err := jobs.EnqueuePurge(cmd.Context(), olderThan)
			if err != nil {
				return fmt.Errorf("failed to enqueue purge: %w", err)
			}

			rt.log.Info().
				Str("task_id", info.ID).
				Str("queue", info.Queue).
				Dur("older_than", olderThan).
				Msg("purge queued")
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "purge posts deleted longer ago than this (default jobs.purge_retention)")
	return cmd
}
