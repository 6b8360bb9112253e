package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/RajibRobidas/memoirbox-reminders/internal/api"
	"github.com/RajibRobidas/memoirbox-reminders/internal/channels/execcmd"
	"github.com/RajibRobidas/memoirbox-reminders/internal/channels/webhook"
	"github.com/RajibRobidas/memoirbox-reminders/internal/checkpoint"
	"github.com/RajibRobidas/memoirbox-reminders/internal/config"
	"github.com/RajibRobidas/memoirbox-reminders/internal/notify"
	"github.com/RajibRobidas/memoirbox-reminders/internal/recovery"
	"github.com/RajibRobidas/memoirbox-reminders/internal/scheduler"
	"github.com/RajibRobidas/memoirbox-reminders/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()
	db.SetMaxOpenConns(1) // SQLite single writer

	if err := store.EnsureSchema(db); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}
	repo := store.NewSQLiteRepo(db)

	var channels []notify.Channel
	if cfg.NotifyCommand != "" {
		channels = append(channels, execcmd.Command{Path: cfg.NotifyCommand})
	}
	if cfg.NotifyWebhook != "" {
		channels = append(channels, webhook.Hook{URL: cfg.NotifyWebhook})
	}
	notifier := notify.New(notify.Options{
		Desktop:  cfg.DesktopNotify,
		Channels: channels,
		Workers:  cfg.NotifyWorkers,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go notifier.Run(ctx)

	// Surface alerts missed while the daemon was down, then start fresh.
	if missed, err := recovery.Run(ctx, repo, notifier.Banners(), time.Now()); err != nil {
		log.Error().Err(err).Msg("missed-alert recovery failed")
	} else {
		log.Info().Int("missed", len(missed)).Msg("startup recovery complete")
	}

	sched := scheduler.New(notifier)
	if err := rearm(ctx, repo, sched); err != nil {
		log.Fatal().Err(err).Msg("initial timer arm")
	}

	cp, err := checkpoint.NewService(repo, cfg.CheckpointCron, time.Minute)
	if err != nil {
		log.Fatal().Err(err).Str("cron", cfg.CheckpointCron).Msg("invalid checkpoint cron")
	}
	go cp.Start(ctx)

	srv := &http.Server{Addr: cfg.Addr, Handler: api.NewServerWithDebug(repo, sched, notifier, cfg.Debug)}
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Info().Msg("shutting down")
	cp.Stop()
	sched.CancelAll()
	cancel()
	ctxTimeout, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()
	_ = srv.Shutdown(ctxTimeout)
}

func rearm(ctx context.Context, repo store.Repository, sched *scheduler.Scheduler) error {
	countdowns, err := repo.ListCountdowns(ctx)
	if err != nil {
		return err
	}
	leadTimes, err := repo.AllLeadTimes(ctx)
	if err != nil {
		return err
	}
	sched.Recompute(countdowns, leadTimes, time.Now())
	return nil
}
