package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contest-service/internal/app"
	"contest-service/internal/config"
	"contest-service/internal/infra/memory"
	"contest-service/internal/infra/postgres"
	redisinfra "contest-service/internal/infra/redis"
	transport "contest-service/internal/transport/http"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the contest server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func contestPolicy(cfg config.Config) app.Policy {
	def := app.DefaultPolicy()
	return app.Policy{
		RegistrationLead: config.TTLDuration(cfg.Contest.RegistrationLead, def.RegistrationLead),
		SubmissionGrace:  config.TTLDuration(cfg.Contest.SubmissionGrace, def.SubmissionGrace),
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DefaultSecret() {
		log.Warn("auth.jwt_secret is the shipped placeholder, tokens are forgeable")
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	opts := []app.Option{app.WithPolicy(contestPolicy(cfg)), app.WithLogger(log)}

	var (
		store  app.Store
		loader app.PaperLoader
	)
	if cfg.Postgres.URL != "" {
		db := openDB(cfg.Postgres.URL)
		defer db.Close()
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = postgres.NewStore(db)
		loader = postgres.NewPaperLoader(pool)
	} else {
		mem := memory.NewStore()
		store, loader = mem, mem
	}

	paperTTL := config.TTLDuration(cfg.Paper.TTL, 10*time.Minute)
	var papers app.PaperRepository
	var hubs app.HubRepository
	if redisClient != nil {
		papers = redisinfra.NewPaperRepository(redisClient, loader, paperTTL)
		hubs = redisinfra.NewHubStore(redisClient, redisTTL)
	} else {
		papers = memory.NewPaperRepository(loader, paperTTL)
		hubs = memory.NewHubStore()
	}

	contests := app.NewContestService(store, papers, hubs, opts...)
	catalog := app.NewCatalogService(store, papers, opts...)

	if cfg.Postgres.URL == "" {
		log.Warn("postgres url not configured, running on in-memory storage")
		if err := seedDemo(ctx, catalog, cfg.Auth.JWTSecret, log); err != nil {
			return err
		}
	}

	sweeper := app.NewStatusSweeper(store, opts...)
	if _, _, err := sweeper.Sweep(ctx); err != nil {
		log.WithError(err).Error("initial contest status sweep failed")
	}
	scheduler, err := sweeper.Schedule(ctx, cfg.Contest.SweepSchedule)
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	gin.SetMode(gin.ReleaseMode)
	router := transport.NewRouter(transport.RouterDeps{
		Contests:  contests,
		Catalog:   catalog,
		Users:     store,
		JWTSecret: cfg.Auth.JWTSecret,
		Logger:    log,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	go func() {
		log.WithField("port", finalPort).Info("starting contest service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("failed to start server")
			stopSignals()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

