package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iabalyuk/freightbot/bot"
	"github.com/iabalyuk/freightbot/config"
	"github.com/iabalyuk/freightbot/locations"
	"github.com/iabalyuk/freightbot/logger"
	"github.com/iabalyuk/freightbot/metrics"
	"github.com/iabalyuk/freightbot/storage"
	"github.com/iabalyuk/freightbot/worker"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd, flags)
		},
	}
}

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			log := logger.New(cfg.LogLevel, cfg.Debug)
			store, err := openStore(cmd.Context(), cfg, &log)
			if err != nil {
				return err
			}
			defer store.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "Schema ready at %s\n", cfg.DBPath)
			return nil
		},
	}
}

func newStatsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			log := logger.New(cfg.LogLevel, cfg.Debug)
			store, err := openStore(cmd.Context(), cfg, &log)
			if err != nil {
				return err
			}
			defer store.Close()

			st, err := store.Stats(cmd.Context(), time.Now().Add(-24*time.Hour))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), worker.FormatReport(st))
			return nil
		},
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *zerolog.Logger) (*storage.SQLiteStore, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := storage.NewSQLiteStore(ctx, cfg.DBPath, storage.Options{
		MaxWeight: cfg.MaxWeight,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite storage at %s: %w", cfg.DBPath, err)
	}
	return store, nil
}

func runBot(cmd *cobra.Command, flags *rootFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if cfg.TelegramToken == "" {
		return errors.New("telegram bot token is required: use --token or TELEGRAM_BOT_TOKEN")
	}
	log := logger.New(cfg.LogLevel, cfg.Debug)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog := locations.Default()
	if cfg.LocationsPath != "" {
		if catalog, err = locations.Load(cfg.LocationsPath); err != nil {
			return err
		}
	}

	store, err := openStore(ctx, cfg, &log)
	if err != nil {
		return err
	}
	defer store.Close()

	if st, err := store.Stats(ctx, time.Now().Add(-24*time.Hour)); err != nil {
		log.Warn().Err(err).Msg("failed to collect startup stats")
	} else {
		log.Info().
			Int("users", st.TotalUsers).
			Int("new_users", st.NewUsers).
			Int("cargo", st.Cargo).
			Int("trucks", st.Trucks).
			Str("db", cfg.DBPath).
			Msg("database ready")
	}

	api, err := bot.Connect(cfg.TelegramToken, cfg.Debug)
	if err != nil {
		return err
	}
	log.Info().Str("username", api.Self.UserName).Msg("authorized on Telegram")

	telegramBot := bot.New(api, bot.Options{
		Store:         store,
		Catalog:       catalog,
		Logger:        &log,
		IsOperator:    cfg.IsAdmin,
		Operators:     cfg.AdminIDs,
		MaxWeight:     cfg.MaxWeight,
		PageSize:      cfg.SearchPageSize,
		BroadcastRate: cfg.BroadcastRate,
	})

	if cfg.StatsEnabled() {
		statsWorker, err := worker.NewStatsWorker(worker.NewStatsWorkerConfig{
			Source:   store,
			NotifyCh: telegramBot.NotifyChannel(),
			Schedule: cfg.StatsCron,
			Logger:   &log,
		})
		if err != nil {
			return err
		}
		statsWorker.Start()
		defer statsWorker.Stop()
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, log); err != nil {
				log.Error().Err(err).Msg("metrics endpoint failed")
			}
		}()
	}

	err = telegramBot.Start(ctx)
	log.Info().Msg("shutting down")
	return err
}
