package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/rs/zerolog"

	"TreasureWatch/internal/breaker"
	"TreasureWatch/internal/database"
	"TreasureWatch/internal/ledger"
	"TreasureWatch/internal/notifier"
	"TreasureWatch/internal/scraper/treasure"
	"TreasureWatch/internal/server"
	"TreasureWatch/internal/snapshot"
	"TreasureWatch/internal/store"
	"TreasureWatch/internal/watch"
	"TreasureWatch/pkg/config"
	"TreasureWatch/utils"
)

// App is the main application structure holding all dependencies.
type App struct {
	Config    *config.Config
	Log       zerolog.Logger
	Docs      *store.DocumentStore
	Archive   *database.ArchiveRepository
	Breaker   *breaker.CircuitBreaker
	Ledger    *ledger.Ledger
	Snapshots *snapshot.Store
}

// New creates an application instance with all stateful services restored
// from their persisted documents.
func New(configPath string, log zerolog.Logger) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	docs, err := store.New(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	archive, err := database.InitDB(cfg.Storage.ArchiveDB)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:    cfg,
		Log:       log,
		Docs:      docs,
		Archive:   archive,
		Breaker:   breaker.New(docs, cfg.Breaker.FailureThreshold, cfg.Breaker.OpenTimeout(), log),
		Ledger:    ledger.New(docs, cfg.Notifications.Cooldown(), cfg.Notifications.HistoryLimit, log),
		Snapshots: snapshot.New(docs, log),
	}, nil
}

// Close releases the archive database.
func (a *App) Close() {
	a.Archive.Close()
}

// RunWatch runs the poll loop until ctx is cancelled.
func (a *App) RunWatch(ctx context.Context) {
	a.Log.Info().
		Dur("interval", a.Config.Watcher.CheckInterval()).
		Int("maxRetries", a.Config.Watcher.MaxRetries).
		Float64("cooldownHours", a.Config.Notifications.CooldownHours).
		Msg("treasure rank-1 watcher starting")

	w, browser := a.buildWatcher()
	defer browser.MustClose()

	if a.Config.Server.Enabled {
		go server.Start(a.Docs, a.Archive, a.Config.Server.Port, a.Log)
	}

	w.Run(ctx)
}

// RunCheck runs exactly one cycle, for cron-style invocation or smoke
// testing a deployment.
func (a *App) RunCheck() error {
	w, browser := a.buildWatcher()
	defer browser.MustClose()

	if outcome := w.RunCycle(); outcome == watch.OutcomeFailed {
		return errors.New("check cycle failed")
	}
	return nil
}

// PrintStatus writes the persisted state to out without touching the page.
func (a *App) PrintStatus(out io.Writer) {
	fmt.Fprintf(out, "circuit breaker: open=%v failures=%d\n", a.Breaker.IsOpen(), a.Breaker.FailureCount())
	fmt.Fprintf(out, "notification history: %d records\n", a.Ledger.Size())

	if snap := a.Snapshots.Load(); snap != nil {
		fmt.Fprintf(out, "last top item: %s ¥%s (ID: %s)\n",
			utils.Truncate(snap.Name, 60), snap.Price, snap.ItemID)
	} else {
		fmt.Fprintln(out, "last top item: none (first run pending)")
	}

	if count, err := a.Archive.CountObservations(); err == nil {
		fmt.Fprintf(out, "archived observations: %d\n", count)
	}
}

func (a *App) buildWatcher() (*watch.Watcher, *rod.Browser) {
	u := launcher.New().Headless(a.Config.Treasure.Headless).MustLaunch()
	browser := rod.New().ControlURL(u).MustConnect()

	extractor := treasure.New(browser, a.Config.Treasure, a.Log)
	chatwork := notifier.NewChatWork(a.Config.ChatWork, a.Config.Treasure.BaseURL, a.Log)

	conf := watch.Config{
		Interval:   a.Config.Watcher.CheckInterval(),
		MaxRetries: a.Config.Watcher.MaxRetries,
		RetryDelay: a.Config.Watcher.RetryDelay(),
	}
	w := watch.New(extractor, chatwork, a.Breaker, a.Ledger, a.Snapshots, a.Archive, conf, a.Log)
	return w, browser
}
