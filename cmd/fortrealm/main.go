package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/fortrealm/server/internal/auth"
	"github.com/fortrealm/server/internal/cache"
	"github.com/fortrealm/server/internal/config"
	"github.com/fortrealm/server/internal/data"
	"github.com/fortrealm/server/internal/event"
	"github.com/fortrealm/server/internal/handler"
	"github.com/fortrealm/server/internal/httpapi"
	"github.com/fortrealm/server/internal/persist"
	"github.com/fortrealm/server/internal/scripting"
	"github.com/fortrealm/server/internal/warfeed"
	"github.com/fortrealm/server/internal/worker"
	"github.com/fortrealm/server/internal/world"
	"github.com/fortrealm/server/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner() {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            fortrealm  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        realm map-game server core         \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
}

func printSection(title string) {
	lineLen := 45 - len(title)
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config.toml"
	if p := os.Getenv("FORTREALM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootCtx, cancelBoot := context.WithTimeout(ctx, 30*time.Second)
	defer cancelBoot()

	// 3. Connect to PostgreSQL and run migrations
	printSection("Storage")

	db, err := persist.NewDB(bootCtx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("PostgreSQL connected")

	if err := db.RunMigrations(bootCtx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK("migrations applied")

	repos := persist.NewRepos(db)

	// 4. Load static tables and seed a fresh world
	printSection("Data")

	items, err := data.LoadItemTable(filepath.Join(cfg.Game.DataDir, "items.yaml"))
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	printStat("item templates", items.Count())

	levels, err := data.LoadLevelTable(filepath.Join(cfg.Game.DataDir, "levels.yaml"))
	if err != nil {
		return fmt.Errorf("load levels: %w", err)
	}
	printStat("level thresholds", levels.Count())

	worldTable, err := data.LoadWorldTable(filepath.Join(cfg.Game.DataDir, "world.yaml"))
	if err != nil {
		return fmt.Errorf("load world: %w", err)
	}

	seeded, err := persist.Seed(bootCtx, repos, items, worldTable)
	if err != nil {
		return fmt.Errorf("seed world: %w", err)
	}
	printStat("territories seeded", seeded.Territories)
	printStat("superbosses seeded", seeded.Superbosses)
	printStat("collectables seeded", seeded.Collectables)

	// 5. Lua balance scripts
	engine, err := scripting.NewEngine(cfg.Game.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer engine.Close()
	printOK("Lua scripts loaded")

	// 6. Redis hot state
	rdb := cache.NewRedisClient(cfg.Redis)
	gameCache := cache.New(rdb, repos, levels, engine.WalkSpeed, log)
	defer gameCache.Close()
	if err := gameCache.Ping(bootCtx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	printOK("Redis connected")

	if err := gameCache.PreloadCatalog(bootCtx, items.All()); err != nil {
		return fmt.Errorf("preload catalog: %w", err)
	}

	restored, err := gameCache.WarmWalkers(bootCtx)
	if err != nil {
		return fmt.Errorf("warm walkers: %w", err)
	}
	printStat("walkers restored", restored)

	// 7. World grid and pathfinding
	worldSvc := world.NewService(cfg.Game.GridSize, cfg.Game.PathStep,
		cfg.Game.PathWorkers, cfg.Game.PathCacheSize, log)
	features, err := repos.Features.All(bootCtx)
	if err != nil {
		return fmt.Errorf("load map features: %w", err)
	}
	worldSvc.Rebuild(features)
	printStat("map features", len(features))
	fmt.Println()

	// 8. Socket hub and presence wiring
	hub := ws.NewHub(cfg.Server, cfg.Game.PresenceDebounce, log)
	wirePresence(hub, gameCache, log)

	// 9. Auth
	verifier, err := newVerifier(cfg.Auth, repos, log)
	if err != nil {
		return err
	}
	tokens := auth.NewTokenManager(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	authSvc := auth.NewService(verifier, tokens, repos.Players, worldTable, log)

	// 10. Command handlers
	deps := &handler.Deps{
		Config:    cfg,
		Log:       log,
		Cache:     gameCache,
		Repos:     repos,
		World:     worldSvc,
		Auth:      authSvc,
		Items:     items,
		Publisher: hub,
		Hub:       hub,
	}
	registry := handler.NewRegistry(cfg.Server.HandlerTimeout, log)
	handler.RegisterAll(registry, deps)
	hub.SetDispatcher(registry)

	// 11. Game loops
	feed := warfeed.NewClient(cfg.War.FeedURL, cfg.War.FeedTimeout, log)
	runner := worker.NewRunner(log,
		worker.NewWalkerWorker(cfg.Game, gameCache, repos.Collectables,
			repos.Inventory, repos.Players, repos.Logs, levels, hub, log),
		worker.NewHealthWorker(cfg.Game, gameCache, repos.Players, repos.Spells,
			repos.Territories, repos.Superbosses, engine, hub, log),
		worker.NewSpellWorker(cfg.Game, repos.Spells, gameCache, hub, log),
		worker.NewTimeWorker(cfg.Game, repos.Time, gameCache, hub, log),
		worker.NewWarWorker(cfg.War, feed, repos.Territories, gameCache, hub, log),
		worker.NewSpawnWorker(cfg.Game, repos.Collectables, gameCache, hub, log),
		worker.NewFlushWorker(cfg.Game, gameCache, log),
	)

	// 12. HTTP surface
	api := httpapi.NewServer(cfg.Server, authSvc, gameCache, db, gameCache, hub.ServeWS, log)

	printSection("Ready")
	printReady("listening on " + cfg.Server.BindAddress)
	printReady(fmt.Sprintf("game loops running (walker tick %s)", cfg.Game.WalkerTick))
	fmt.Println()

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return api.Run(runCtx) })
	g.Go(func() error { return runner.Run(runCtx) })
	err = g.Wait()

	// Shutdown: sockets close, then buffered state drains to Postgres so a
	// restart resumes walkers mid-path with fresh last-active stamps.
	log.Info("shutting down")
	hub.Shutdown()

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelDrain()
	if n, ferr := gameCache.FlushLastActive(drainCtx); ferr != nil {
		log.Warn("final last-active flush failed", zap.Error(ferr))
	} else if n > 0 {
		log.Info("flushed last active", zap.Int("rows", n))
	}
	persistWalkerProgress(drainCtx, gameCache, repos.Walkers, log)

	log.Info("server stopped")
	return err
}

// wirePresence connects hub session edges to the presence cache and the
// join/leave broadcasts. The auth handler has already cached the player
// snapshot by the time OnConnect fires.
func wirePresence(hub *ws.Hub, c *cache.Cache, log *zap.Logger) {
	hub.OnConnect = func(userID int64) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		p, err := c.Player(ctx, userID)
		if err != nil {
			log.Warn("connect broadcast skipped", zap.Int64("user", userID), zap.Error(err))
			return
		}
		hub.Global(event.PlayerConnected, event.Connected{
			UserID:   p.UserID,
			Username: p.Username,
			Realm:    p.Realm,
			X:        p.X,
			Y:        p.Y,
		})
	}
	hub.OnDisconnect = func(userID int64) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.RemoveOnline(ctx, userID)
		c.BufferLastActive(ctx, userID, time.Now())
		hub.Global(event.PlayerDisconnected, event.Disconnected{UserID: userID})
	}
	hub.OnHeartbeat = func(userID int64) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		c.TouchOnline(ctx, userID)
		c.BufferLastActive(ctx, userID, time.Now())
	}
}

// newVerifier picks the credential backend. Forum mode delegates to the
// community site; local mode checks the accounts table directly.
func newVerifier(cfg config.AuthConfig, repos *persist.Repos, log *zap.Logger) (auth.Verifier, error) {
	switch cfg.Mode {
	case "forum":
		return auth.NewForumClient(cfg.ForumURL, cfg.ForumTimeout, log), nil
	case "local":
		return auth.NewLocalVerifier(repos.Accounts, cfg.AutoCreateAccounts, log), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

// persistWalkerProgress writes each live walker's current index so warm
// boot resumes walks from where they stopped instead of the path start.
func persistWalkerProgress(ctx context.Context, c *cache.Cache, walkers *persist.WalkerRepo, log *zap.Logger) {
	live, err := c.Walkers(ctx)
	if err != nil {
		log.Warn("walker progress snapshot failed", zap.Error(err))
		return
	}
	saved := 0
	for i := range live {
		w := &live[i]
		if err := walkers.UpdateIndex(ctx, w.ID, w.CurrentIndex); err != nil {
			log.Warn("walker progress save failed", zap.String("walker", w.ID), zap.Error(err))
			continue
		}
		saved++
	}
	if saved > 0 {
		log.Info("walker progress saved", zap.Int("walkers", saved))
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
