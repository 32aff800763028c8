/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the capacity planner server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (flags > PLANNER_* env > YAML file > defaults)
  2. Build the zap logger
  3. Initialize SQLite store
  4. Create planning service, Jira importer and API handler
  5. Configure HTTP router with /metrics
  6. Start Jira sync scheduler when configured
  7. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server --db=./data/planner.db

  # Run with in-memory database
  ./server --db=":memory:"

  # Sync Jira-linked projects hourly
  PLANNER_JIRA_TOKEN=... ./server --jira-url=https://acme.atlassian.net \
    --jira-email=ops@acme.test --jira-sync-interval=1h

SEE ALSO:
  - config/config.go: Keys and precedence
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/warp/capacity-planner/api"
	"github.com/warp/capacity-planner/config"
	"github.com/warp/capacity-planner/jira"
	"github.com/warp/capacity-planner/planning"
	"github.com/warp/capacity-planner/store/sqlite"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:          "server",
		Short:        "Capacity planner HTTP server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	config.Register(v, cmd.Flags())
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	store, err := sqlite.New(cfg.DB)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := planning.NewService(store, log.Named("planning"), planning.NewMetrics(reg))
	client := jira.NewClient(log.Named("jira"), cfg.JiraRPS)
	importer := jira.NewImporter(client, svc, log.Named("jira"), jira.NewMetrics(reg), jira.Credentials{
		BaseURL:  cfg.JiraURL,
		Email:    cfg.JiraEmail,
		APIToken: cfg.JiraToken,
	})

	handler := api.NewHandler(api.Deps{
		Service:      svc,
		Importer:     importer,
		JiraProjects: client,
		Health:       store,
		Log:          log.Named("api"),
		CacheTTL:     cfg.ReferenceCacheTTL,
	})
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.CORSOrigins,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	scheduler := api.NewJiraSyncScheduler(importer, log.Named("scheduler"), cfg.JiraSyncInterval)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.Int("port", cfg.Port), zap.String("db", cfg.DB))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
