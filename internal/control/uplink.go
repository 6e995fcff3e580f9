package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/uplink/internal/core/config"
	"github.com/vietddude/uplink/internal/core/domain"
	"github.com/vietddude/uplink/internal/core/worker"
	"github.com/vietddude/uplink/internal/health"
	"github.com/vietddude/uplink/internal/infra/cloud"
	redisclient "github.com/vietddude/uplink/internal/infra/redis"
	"github.com/vietddude/uplink/internal/infra/storage"
	"github.com/vietddude/uplink/internal/infra/storage/memory"
	"github.com/vietddude/uplink/internal/infra/storage/postgres"
	"github.com/vietddude/uplink/internal/metrics"

	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
)

// Uplink is the main application struct that manages the engine lifecycle.
type Uplink struct {
	cfg          Config
	engine       *cloud.Engine
	store        storage.Store
	db           *postgres.DB
	redisClient  *redisclient.Client
	deadLetters  *redisclient.DeadLetterRepo
	healthMon    *health.Monitor
	healthServer *health.Server
	pruner       *worker.Pruner
	log          *slog.Logger
}

// Config holds the application configuration.
type Config struct {
	Port          int
	Providers     []config.ProviderConfig
	Budget        config.BudgetConfig
	Selection     config.SelectionConfig
	Retry         config.RetryConfig
	Journal       config.JournalConfig
	Redis         redisclient.Config
	Database      postgres.Config
	MigrationsDir string // defaults to "migrations" relative to CWD
}

// New creates a new Uplink instance with all dependencies initialized.
func New(cfg Config) (*Uplink, error) {

	// 1. Initialize Storage
	var store storage.Store
	var db *postgres.DB

	if cfg.Database.URL != "" {
		pgStore, err := postgres.NewStore(context.Background(), postgres.Config{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		db = pgStore.DB()

		// Run migrations
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		migrationsDir := cfg.MigrationsDir
		if migrationsDir == "" {
			migrationsDir = "migrations"
		}
		if err := goose.Up(db.SQLDB(), migrationsDir); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		store = pgStore
		slog.Info("Using PostgreSQL storage")
	} else {
		store = memory.NewStore()
		slog.Info("Using Memory storage")
	}

	// 2. Initialize Redis Dead Letters
	var redisClient *redisclient.Client
	var deadLetters *redisclient.DeadLetterRepo

	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, dead letters disabled", "error", err)
		} else {
			deadLetters = redisclient.NewDeadLetterRepo(redisClient, "uplink")
			slog.Info("Dead-letter store initialized")
		}
	}

	// 3. Initialize Upload Engine
	strategy := cloud.StrategyRoundRobin
	if cfg.Selection.Strategy != "" {
		parsed, err := cloud.ParseStrategy(cfg.Selection.Strategy)
		if err != nil {
			return nil, err
		}
		strategy = parsed
	}

	engineCfg := cloud.EngineConfig{
		BudgetCeiling: decimal.NewFromFloat(cfg.Budget.MonthlyCeiling),
		Strategy:      strategy,
		CostFirst:     cfg.Selection.CostFirst,
		Retry: cloud.Policy{
			BaseDelay: cfg.Retry.BaseDelay,
			MaxDelay:  cfg.Retry.MaxDelay,
		},
		MaxRetries:   cfg.Retry.MaxRetries,
		ProbeTimeout: cfg.Retry.ProbeTimeout,
		Notifier:     domain.Notifiers{eventLogger{}, metrics.Notifier{}},
		Journal:      store.Journal(),
	}
	// Assign only when present so the engine's nil check stays meaningful
	if deadLetters != nil {
		engineCfg.DeadLetters = deadLetters
	}

	engine := cloud.NewEngine(engineCfg)

	// 4. Register Providers
	for _, pc := range cfg.Providers {
		reg := cloud.Registration{
			Settings: cloud.Settings{
				Name:      pc.Name,
				Platform:  domain.Platform(pc.Platform),
				Transport: domain.TransportKind(pc.Transport),
				Endpoint:  pc.Endpoint,
				Region:    pc.Region,
				Bucket:    pc.Bucket,
				AccessKey: pc.AccessKey,
				SecretKey: pc.SecretKey,
				Token:     pc.Token,
				Encrypted: pc.Encrypted,
				SyncMode:  domain.SyncMode(pc.SyncMode),
				Timeout:   pc.Timeout,
			},
			Priority:  pc.Priority,
			RatePerMB: decimal.NewFromFloat(pc.RatePerMB),
		}
		if err := engine.Register(context.Background(), reg); err != nil {
			return nil, fmt.Errorf("failed to register provider %s: %w", pc.Name, err)
		}
	}

	// 5. Restore Ledger State
	states, err := store.Ledger().LoadStates(context.Background())
	if err != nil {
		slog.Warn("Failed to load ledger state", "error", err)
	} else if len(states) > 0 {
		entries := make([]cloud.LedgerEntry, 0, len(states))
		for _, st := range states {
			entries = append(entries, cloud.LedgerEntry{
				Provider:    st.Provider,
				Spend:       st.Spend,
				PeriodStart: st.PeriodStart,
			})
		}
		engine.RestoreLedger(entries)
		slog.Info("Restored ledger state", "providers", len(entries))
	}

	// 6. Initialize Health Monitor and Server
	var dlCounter health.DeadLetterCounter
	if deadLetters != nil {
		dlCounter = deadLetters
	}
	healthMon := health.NewMonitor(engine, dlCounter, store)
	healthServer := health.NewServer(healthMon, cfg.Port)

	// 7. Initialize Journal Pruner
	var pruner *worker.Pruner
	if cfg.Journal.RetentionPeriod > 0 {
		pruner = worker.NewPruner(cfg.Journal.RetentionPeriod, store.Journal())
	}

	return &Uplink{
		cfg:          cfg,
		engine:       engine,
		store:        store,
		db:           db,
		redisClient:  redisClient,
		deadLetters:  deadLetters,
		healthMon:    healthMon,
		healthServer: healthServer,
		pruner:       pruner,
		log:          slog.Default(),
	}, nil
}

// Engine exposes the upload engine for callers that submit requests.
func (u *Uplink) Engine() *cloud.Engine {
	return u.engine
}

// Store exposes the persistence backend.
func (u *Uplink) Store() storage.Store {
	return u.store
}

// Start starts the uplink and all its components.
func (u *Uplink) Start(ctx context.Context) error {
	// Start Health Server
	go func() {
		if err := u.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			u.log.Error("Health server failed", "error", err)
		}
	}()

	// Start DB Metrics Collector
	if u.db != nil {
		u.db.StartMetricsCollector(ctx)
	}

	// Start Journal Pruner
	if u.pruner != nil {
		u.log.Info("Starting journal pruner", "retention", u.cfg.Journal.RetentionPeriod)
		go u.pruner.Start(ctx)
	}

	// Start Metrics Updater and Ledger Flusher
	go u.runMetricsUpdater(ctx)
	go u.runLedgerFlusher(ctx)

	u.log.Info("Uplink started", "providers", len(u.engine.Providers()), "port", u.cfg.Port)
	return nil
}

// Stop stops the uplink.
func (u *Uplink) Stop(ctx context.Context) error {
	u.log.Info("Stopping Uplink...")

	// Persist the ledger so spend survives the restart
	u.flushLedger(ctx)

	// Close Redis
	if u.redisClient != nil {
		if err := u.redisClient.Close(); err != nil {
			u.log.Warn("Failed to close Redis", "error", err)
		}
	}

	// Close Storage
	if err := u.store.Close(); err != nil {
		u.log.Warn("Failed to close storage", "error", err)
	}

	// Stop Health Server
	return u.healthServer.Stop(ctx)
}

func (u *Uplink) runMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.MonthlySpend.Set(u.engine.TotalMonthlySpend().InexactFloat64())
			for _, st := range u.engine.GetProviderStatuses() {
				metrics.ProviderHealth.WithLabelValues(st.Provider).Set(metrics.HealthValue(st.Health))
				metrics.ProviderSuccessRate.WithLabelValues(st.Provider).Set(st.SuccessRate)
				metrics.ProviderResponseMs.WithLabelValues(st.Provider).Set(st.AvgResponseMs)
			}
			if u.deadLetters != nil {
				if count, err := u.deadLetters.Count(ctx); err == nil {
					metrics.DeadLetterQueueDepth.Set(float64(count))
				}
			}
		}
	}
}

func (u *Uplink) runLedgerFlusher(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.flushLedger(ctx)
		}
	}
}

func (u *Uplink) flushLedger(ctx context.Context) {
	entries := u.engine.LedgerSnapshot()
	if len(entries) == 0 {
		return
	}

	states := make([]storage.LedgerState, 0, len(entries))
	for _, e := range entries {
		states = append(states, storage.LedgerState{
			Provider:    e.Provider,
			Spend:       e.Spend,
			PeriodStart: e.PeriodStart,
		})
	}
	if err := u.store.Ledger().SaveStates(ctx, states); err != nil {
		u.log.Error("Failed to persist ledger state", "error", err)
	}
}

// eventLogger surfaces engine events in the application log.
type eventLogger struct{}

func (eventLogger) HealthChanged(ev domain.HealthChange) {
	slog.Info("Provider health changed",
		"provider", ev.Provider,
		"from", ev.From,
		"to", ev.To,
		"success_rate", ev.SuccessRate,
	)
}

func (eventLogger) FailedOver(ev domain.Failover) {
	slog.Warn("Upload failed over", "request_id", ev.RequestID, "from", ev.From, "to", ev.To)
}

func (eventLogger) BudgetExceeded(ev domain.BudgetExceeded) {
	slog.Warn("Monthly budget exceeded", "spend", ev.Spend, "budget", ev.Budget)
}
