package app

import (
	"fmt"
	"net/http"
	"time"

	"docweave/internal/analyzer"
	"docweave/internal/config"
	"docweave/internal/events"
	"docweave/internal/filter"
	"docweave/internal/identity"
	"docweave/internal/ingest"
	"docweave/internal/metrics"
	"docweave/internal/orchestrator"
	"docweave/internal/provider"
	"docweave/internal/reconciler"
	"docweave/internal/server"
	"docweave/internal/store"
	"docweave/internal/webhook"
	"docweave/pkg/logging"

	"github.com/prometheus/client_golang/prometheus"
)

// Services bundles every constructed collaborator, so Application.Run only
// needs to start and stop the HTTP server.
type Services struct {
	cfg          config.Config
	httpServer   *http.Server
	orchestrator *orchestrator.Orchestrator
}

// InitializeServices wires every component in spec.md §2's dependency
// order: filter → provider client → stores → ingestor → analyzer runner →
// progress bus → metrics → orchestrator → reconciler → webhook receiver →
// HTTP server.
func InitializeServices(appCfg *Config) (*Services, error) {
	cfg, err := config.Load(appCfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	db, err := store.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if !cfg.IsDatabaseConfigured() {
		logging.Warn("Bootstrap", "DATABASE_URL not set; status and document stores are running in degraded mode")
	}

	exclusionFilter, err := filter.New(cfg.Filter.ExtraPatterns...)
	if err != nil {
		return nil, fmt.Errorf("constructing exclusion filter: %w", err)
	}

	providerClient := provider.New(cfg.GitHub.APIBaseURL)
	identityVerifier := identity.NewVerifier(cfg.Identity.JWTSecret)

	repos := store.NewRepositoryStore(db)
	statusStore := store.NewStatusStore(db)
	docStore := store.NewDocumentStore(db)
	fileStore := store.NewRepoFileStore(db)

	ingestor := ingest.New(providerClient, exclusionFilter, fileStore, docStore)
	analyzerRunner := analyzer.New(cfg.Analyzer.Command)
	bus := events.New()

	metricsReg := prometheus.NewRegistry()
	metricsRegistry := metrics.New(metricsReg)

	orch := orchestrator.New(orchestrator.Config{
		OutputRoot:         cfg.Server.OutputRoot,
		WebhookDeliveryURL: webhookDeliveryURL(cfg),
		WebhookSecret:      cfg.GitHub.WebhookSecret,
	}, providerClient, ingestor, analyzerRunner, repos, statusStore, docStore, bus, metricsRegistry)

	recon := reconciler.New(statusStore, docStore, metricsRegistry.ReconcilerCorrections)

	webhookReceiver := webhook.New(cfg.GitHub.WebhookSecret, cfg.GitHub.PushToken, orch, func(event, outcome string) {
		metricsRegistry.WebhookDeliveries.WithLabelValues(event, outcome).Inc()
	})

	httpHandler := server.New(server.Deps{
		Identity:     identityVerifier,
		Provider:     providerClient,
		Repos:        repos,
		Documents:    docStore,
		Orchestrator: orch,
		Bus:          bus,
		Reconciler:      recon,
		Webhook:         webhookReceiver,
		OutputRoot:      cfg.Server.OutputRoot,
		MetricsGatherer: metricsReg,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           httpHandler.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	return &Services{cfg: cfg, httpServer: httpServer, orchestrator: orch}, nil
}

// webhookDeliveryURL derives the per-repository webhook callback base from
// the configured public URL, or returns "" to skip webhook registration
// entirely when none is configured.
func webhookDeliveryURL(cfg config.Config) string {
	if cfg.GitHub.PublicWebhookURL == "" {
		return ""
	}
	return cfg.GitHub.PublicWebhookURL + "/webhooks/github"
}

// shutdownGrace bounds how long Run waits for in-flight HTTP requests to
// drain on shutdown.
const shutdownGrace = 10 * time.Second
