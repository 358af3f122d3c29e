package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"nonprofit-records/auth"
	"nonprofit-records/beneficiaries"
	"nonprofit-records/common"
	"nonprofit-records/events"
	"nonprofit-records/exports"
	"nonprofit-records/imports"
	"nonprofit-records/volunteers"
)

// App holds the application dependencies
type App struct {
	cfg      *common.Config
	log      *zap.Logger
	db       *gorm.DB
	identity *auth.Identity
	tokens   *auth.TokenService
	registry *prometheus.Registry
	imports  *imports.Service
	exports  *exports.Service
}

var (
	configPath string
	app        *App
)

func Migrate(db *gorm.DB, identity *auth.Identity) error {
	// Migrate domain models
	for _, migrate := range []func(*gorm.DB) error{
		beneficiaries.AutoMigrate,
		volunteers.AutoMigrate,
		events.AutoMigrate,
		common.AutoMigrateJobs,
	} {
		if err := migrate(db); err != nil {
			return err
		}
	}
	return identity.AutoMigrate()
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "records",
		Short:         "Nonprofit records backend",
		Long:          `Imports and exports beneficiaries, volunteers and events as CSV, over HTTP or from the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			app, err = newApp(common.ConfigPath(configPath))
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				app.close()
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file (CONFIG_PATH wins)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newApp loads config and opens the database, logger and services.
func newApp(path string) (*App, error) {
	cfg, err := common.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	log, err := common.NewLogger(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := common.Init(cfg.StoragePath)
	if err != nil {
		return nil, err
	}
	identity := auth.NewIdentity(db)
	if err := Migrate(db, identity); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := common.NewMetrics(registry)

	beneficiaryStore := beneficiaries.NewStore(db, cfg.Import.BatchSize)
	volunteerStore := volunteers.NewStore(db)
	eventStore := events.NewStore(db, cfg.Import.BatchSize)

	return &App{
		cfg:      cfg,
		log:      log,
		db:       db,
		identity: identity,
		tokens:   auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		registry: registry,
		imports: imports.NewService(imports.Deps{
			Beneficiaries:  beneficiaryStore,
			Volunteers:     volunteerStore,
			Events:         eventStore,
			Identity:       identity,
			Runs:           common.NewRunLog(db),
			Metrics:        metrics,
			Log:            log.Named("imports"),
			MaxConcurrency: cfg.Import.MaxConcurrency,
		}),
		exports: exports.NewService(exports.Deps{
			Beneficiaries: beneficiaryStore,
			Volunteers:    volunteerStore,
			Events:        eventStore,
			Metrics:       metrics,
			Log:           log.Named("exports"),
		}),
	}, nil
}

func (a *App) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	_ = a.log.Sync()
}

// router builds the gin engine with every route mounted.
func (a *App) router() *gin.Engine {
	if a.cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.RedirectTrailingSlash = false
	r.Use(gin.Recovery())
	r.Use(common.MetricsMiddleware(a.db, a.log))
	r.Use(auth.Authenticate(a.tokens, a.log))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	imports.NewHandler(a.imports, a.log.Named("http")).Register(v1)
	exports.NewHandler(a.exports).Register(v1)
	return r
}

// serve runs the HTTP server until ctx is cancelled, then drains it.
func (a *App) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    a.cfg.HTTPServer.Addr,
		Handler: a.router(),
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", a.cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTPServer.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
