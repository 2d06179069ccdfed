package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/DJCastle/homeBrewScripts/internal/brew"
	"github.com/DJCastle/homeBrewScripts/internal/config"
	"github.com/DJCastle/homeBrewScripts/internal/history"
	"github.com/DJCastle/homeBrewScripts/internal/maintenance"
	"github.com/DJCastle/homeBrewScripts/internal/notify"
	"github.com/DJCastle/homeBrewScripts/internal/orch"
	"github.com/DJCastle/homeBrewScripts/internal/precheck"
	"github.com/DJCastle/homeBrewScripts/internal/probe"
	"github.com/DJCastle/homeBrewScripts/internal/report"
	"github.com/DJCastle/homeBrewScripts/internal/sched"
	"github.com/DJCastle/homeBrewScripts/pkg/logx"
)

func main() {
	os.Exit(run())
}

// run exists so deferred cleanups fire before the process exits.
func run() int {
	var (
		cfgPath string
		daemon  bool
	)
	flag.StringVar(&cfgPath, "config", "./brewmaint.yaml", "path to config file (json or yaml)")
	flag.BoolVar(&daemon, "daemon", false, "keep running and trigger runs on the configured schedule")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return 1
	}

	log, closeLog := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	defer func() { _ = closeLog() }()

	store, err := history.Open(history.Config{
		Driver:      cfg.History.Driver,
		Path:        cfg.History.Path,
		Keep:        cfg.History.KeepOr(90),
		BusyTimeout: cfg.History.BusyTimeoutDuration(),
	}, log)
	if err != nil {
		log.Error("failed to open run history", logx.Err(err))
		return 1
	}
	defer func() { _ = store.Close() }()

	if daemon {
		return runDaemon(ctx, mgr, store, log)
	}
	return runOnce(ctx, cfg, store, log)
}

func runOnce(ctx context.Context, cfg *config.Config, store *history.Store, log logx.Logger) int {
	out, err := buildOrchestrator(cfg, store, log).RunOnce(ctx)
	if err != nil {
		log.Error("maintenance run failed before a report could be made", logx.Err(err))
		return 1
	}
	// Step failures are reported, not retried; the exit code only says
	// whether the report reached anyone.
	if !out.Delivered() {
		log.Error("report produced but no channel could deliver it")
		return 1
	}
	return 0
}

func runDaemon(ctx context.Context, mgr *config.Manager, store *history.Store, log logx.Logger) int {
	cfg := mgr.Get()
	if !cfg.Schedule.Enabled {
		log.Error("daemon mode requires schedule.enabled in the config")
		return 1
	}

	mgr.SetLogger(log)
	go func() {
		if err := mgr.Watch(ctx); err != nil {
			log.Warn("config watcher stopped", logx.Err(err))
		}
	}()

	// Overlap guard: a slow run swallows the next trigger instead of
	// stacking package-manager invocations.
	var runMu sync.Mutex
	trigger := func() {
		if !runMu.TryLock() {
			log.Warn("previous maintenance run still in progress, skipping trigger")
			return
		}
		defer runMu.Unlock()

		// Re-read config so edits apply between runs, not mid-run.
		current := mgr.Get()
		out, err := buildOrchestrator(current, store, log).RunOnce(ctx)
		if err != nil {
			log.Error("maintenance run failed", logx.Err(err))
			return
		}
		if !out.Delivered() {
			log.Error("report produced but no channel could deliver it")
		}
	}

	svc, err := sched.New(sched.Config{
		Spec:     cfg.Schedule.Spec,
		Timezone: cfg.Schedule.Timezone,
	}, log, trigger)
	if err != nil {
		log.Error("failed to start schedule", logx.Err(err))
		return 1
	}
	svc.Start()

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	svc.Stop(stopCtx)
	return 0
}

func buildOrchestrator(cfg *config.Config, store *history.Store, log logx.Logger) *orch.Orchestrator {
	host, _ := os.Hostname()

	pm := brew.New(cfg.Brew.BinOr("brew"), log.With(logx.String("component", "brew")))
	checker := precheck.New(precheck.Config{
		RequiredNetwork:   cfg.Preconditions.Network,
		RequireACPower:    cfg.Preconditions.RequireACPower,
		MinBatteryPercent: cfg.Preconditions.MinBatteryPercent,
		MaxAttempts:       cfg.Preconditions.MaxAttemptsOr(3),
		RetryDelay:        cfg.Preconditions.RetryDelayOr(5 * time.Minute),
	}, probe.NewWifi(cfg.Preconditions.WifiInterface), probe.NewPower(),
		log.With(logx.String("component", "precheck")))

	channels := []notify.Channel{
		notify.NewTelegram(notify.TelegramConfig{
			Enabled:    cfg.Notify.Telegram.Enabled,
			Token:      cfg.Notify.Telegram.Token,
			ChatID:     cfg.Notify.Telegram.ChatID,
			RatePerSec: cfg.Notify.Telegram.RatePerSec,
		}, log.With(logx.String("channel", "telegram"))),
		notify.NewEmail(notify.EmailConfig{
			Enabled:  cfg.Notify.Email.Enabled,
			Host:     cfg.Notify.Email.Host,
			Port:     cfg.Notify.Email.Port,
			From:     cfg.Notify.Email.From,
			To:       cfg.Notify.Email.To,
			Username: cfg.Notify.Email.Username,
			Password: cfg.Notify.Email.Password,
		}, log.With(logx.String("channel", "email"))),
	}

	deps := orch.Deps{
		Checker:    checker,
		PM:         pm,
		Runner:     maintenance.NewRunner(cfg.Brew.StepTimeoutOr(30*time.Minute), log.With(logx.String("component", "runner"))),
		Steps:      maintenance.BrewSteps(pm, cfg.Brew.CasksEnabled()),
		Builder:    report.Builder{Host: host},
		Dispatcher: notify.NewDispatcher(cfg.Notify.SendTimeoutOr(30*time.Second), log.With(logx.String("component", "notify"))),
		Channels:   channels,
		Log:        log,
	}
	if store != nil {
		deps.History = store
	}
	return orch.New(deps)
}
