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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"staycal/internal/config"
	"staycal/internal/feed"
	appLog "staycal/internal/log"
	"staycal/internal/metrics"
	"staycal/internal/notify"
	"staycal/internal/store"
	appSync "staycal/internal/sync"
	"staycal/internal/web"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "staycal",
		Usage: "Reservation calendar for short-stay properties: feed sync, manual bookings, enrichment webhooks.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "./staycal.yaml",
				Usage:   "Path to the YAML config file (created with defaults if missing).",
				EnvVars: []string{"STAYCAL_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			syncCommand(),
			seedCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		appLog.Error("staycal failed", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// openBlob constructs the persistence backend selected in the config.
func openBlob(cfg *config.Config) store.Blob {
	if cfg.Storage.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Address,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		return &store.RedisBlob{Client: client, Key: cfg.Storage.Redis.Key}
	}
	return &store.FileBlob{Path: cfg.Storage.Path}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API with the periodic feed sync scheduler.",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				appLog.Info("signal received, shutting down", "signal", sig.String())
				cancel()
			}()

			st, err := store.Open(ctx, openBlob(cfg))
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}

			registry := prometheus.NewRegistry()
			m := metrics.New(registry)

			var sms notify.SMSSender
			if cfg.Notify.SMSEnabled {
				sms = notify.ConsoleSMS{}
			}
			notifier := notify.New(cfg.Notify.WebhookURL, sms, m)

			fetcher := feed.NewFetcher(cfg.FetchProxy)
			runner := appSync.NewRunner(st, fetcher, cfg.Sources(), m)

			scheduler, err := runner.Schedule(ctx, cfg.SyncCron)
			if err != nil {
				return fmt.Errorf("start scheduler: %w", err)
			}
			defer scheduler.Stop()

			srv := web.NewServer(cfg, st, runner, notifier, m, registry)
			httpSrv := &http.Server{
				Addr:              cfg.Listen,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				appLog.Info("starting HTTP server",
					"listen", "http://"+cfg.Listen,
					"feeds", len(cfg.Feeds),
					"sync_cron", cfg.SyncCron,
					"storage", cfg.Storage.Backend,
				)
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := httpSrv.Shutdown(shutdownCtx); err != nil {
					appLog.Error("HTTP shutdown failed", err)
				}
				appLog.Info("staycal exiting")
				return nil
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run one feed sync cycle and print the report.",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			st, err := store.Open(c.Context, openBlob(cfg))
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}

			m := metrics.New(prometheus.NewRegistry())
			fetcher := feed.NewFetcher(cfg.FetchProxy)
			runner := appSync.NewRunner(st, fetcher, cfg.Sources(), m)

			report, err := runner.RunCycle(c.Context)
			if err != nil {
				return fmt.Errorf("sync cycle: %w", err)
			}

			fmt.Printf("synced %d feed(s): %d reservation(s) imported in %s\n",
				report.FeedCount, report.Imported,
				report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
			for _, fe := range report.FeedErrors {
				fmt.Printf("  feed failed: %s\n", fe.Error())
			}
			if len(report.FeedErrors) > 0 {
				return fmt.Errorf("%d feed(s) failed", len(report.FeedErrors))
			}
			return nil
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Reset the store to the built-in starter data.",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			st, err := store.Open(c.Context, openBlob(cfg))
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			if err := st.ReplaceAll(c.Context, store.Seed()); err != nil {
				return fmt.Errorf("write seed data: %w", err)
			}

			fmt.Printf("store reset to %d seed reservation(s)\n", len(store.Seed()))
			return nil
		},
	}
}
