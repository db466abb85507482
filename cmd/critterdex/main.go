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

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/critterdex/critterdex/internal/auth"
	"github.com/critterdex/critterdex/internal/chat"
	"github.com/critterdex/critterdex/internal/config"
	"github.com/critterdex/critterdex/internal/game/chance"
	"github.com/critterdex/critterdex/internal/game/claim"
	"github.com/critterdex/critterdex/internal/game/events"
	"github.com/critterdex/critterdex/internal/game/ledger"
	"github.com/critterdex/critterdex/internal/game/mail"
	"github.com/critterdex/critterdex/internal/game/raffle"
	"github.com/critterdex/critterdex/internal/game/rank"
	"github.com/critterdex/critterdex/internal/game/shop"
	"github.com/critterdex/critterdex/internal/game/spawn"
	"github.com/critterdex/critterdex/internal/game/trade"
	"github.com/critterdex/critterdex/internal/ratelimit"
	"github.com/critterdex/critterdex/internal/server"
	"github.com/critterdex/critterdex/internal/storage"
	"github.com/critterdex/critterdex/internal/telemetry"
	"github.com/critterdex/critterdex/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("CRITTERDEX_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("critterdex starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Connect to database. With no NOTIFY_URL the query URL doubles as the
	// notify connection; split them only when queries go through PgBouncer.
	notifyURL := cfg.NotifyURL
	if notifyURL == "" {
		notifyURL = cfg.DatabaseURL
	}
	db, err := storage.New(ctx, cfg.DatabaseURL, notifyURL, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close(context.Background())

	// Register connection pool OTEL metrics (after telemetry.Init).
	db.RegisterPoolMetrics()

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	zone := cfg.Location()

	// Game services. The registry is the sole holder of live spawns; every
	// service below it only touches persistent state.
	registry := spawn.NewRegistry()
	chanceSvc := chance.New(db, chance.Model{
		Step:    cfg.ChanceStep,
		Floor:   cfg.ChanceFloor,
		Ceiling: cfg.ChanceCeiling,
	})
	ledgerSvc := ledger.New(db)
	claimSvc := claim.New(claim.Config{
		Cooldown:             cfg.ClaimCooldown,
		MilestonePayout:      cfg.MilestonePayout,
		GroupMilestonePayout: cfg.GroupMilestonePayout,
		QualifiedMinMembers:  cfg.QualifiedMinMembers,
	}, db, registry, chanceSvc, ledgerSvc, logger)
	tradeSvc := trade.New(trade.Config{
		DailyLimit: cfg.TradeDailyLimit,
		Zone:       zone,
	}, db, ledgerSvc, trade.NewRestrictionGate(db), logger)
	eventSvc := events.New(db, cfg.QualifiedMinMembers, logger)

	// Announcements flow out through pg_notify so every API instance's SSE
	// subscribers see them.
	broadcaster := chat.NewBroadcaster(db, logger)
	announcer := chat.NewAnnouncer(broadcaster)

	mailSvc := mail.New(db, ledgerSvc, broadcaster, logger)
	shopSvc := shop.New(shop.Config{
		Weights: spawn.Weights{
			C: cfg.TierWeightC, B: cfg.TierWeightB,
			A: cfg.TierWeightA, S: cfg.TierWeightS,
		},
		ShinyChance: cfg.ShinyChance,
	}, db, ledgerSvc, logger)
	raffleSvc := raffle.New(db, zone, logger)
	rankSvc := rank.New(db, zone, logger)

	scheduler := spawn.NewScheduler(spawn.SchedulerConfig{
		MinDelay:      cfg.SpawnMinDelay,
		MaxDelay:      cfg.SpawnMaxDelay,
		EventChance:   cfg.EventChance,
		ShinyChance:   cfg.ShinyChance,
		Weights:       spawn.Weights{C: cfg.TierWeightC, B: cfg.TierWeightB, A: cfg.TierWeightA, S: cfg.TierWeightS},
		StaleHorizon:  cfg.StaleHorizon,
		SweepInterval: cfg.SweepInterval,
	}, db, registry, announcer, eventSvc, logger)

	var broker *server.Broker
	if db.HasNotifyConn() {
		broker = server.NewBroker(db, logger)
	} else {
		logger.Info("SSE broker: disabled (no notify connection)")
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		mem := ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		defer func() { _ = mem.Close() }()
		limiter = mem
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	srv := server.New(server.Config{
		Deps: server.HandlersDeps{
			DB:                  db,
			JWTMgr:              jwtMgr,
			ClaimSvc:            claimSvc,
			TradeSvc:            tradeSvc,
			EventSvc:            eventSvc,
			MailSvc:             mailSvc,
			ShopSvc:             shopSvc,
			RaffleSvc:           raffleSvc,
			RankSvc:             rankSvc,
			LedgerSvc:           ledgerSvc,
			Registry:            registry,
			Scheduler:           scheduler,
			Announcer:           announcer,
			Broker:              broker,
			Logger:              logger,
			Version:             version,
			MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		},
		Limiter:      limiter,
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Seed the initial admin adapter on a fresh database.
	if err := srv.Handlers().SeedAdmin(ctx, cfg.AdminAPIKey); err != nil {
		slog.Warn("admin seed failed", "error", err)
	}

	// Background workers: spawn loops, monthly ranking settlement, and the
	// notification fan-out.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error { return rankSvc.Run(gctx) })
	if broker != nil {
		g.Go(func() error {
			broker.Start(gctx)
			return nil
		})
	}

	// Start HTTP server in background.
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("critterdex shutting down")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	// Wait for the spawn loops and workers to drain.
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
