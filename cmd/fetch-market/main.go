// cmd/fetch-market/main.go
//
// fetch-market refreshes the market snapshot. It takes no arguments and is
// meant to run once a day from a scheduler.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"tamj/config"
	"tamj/internal/market"
	"tamj/internal/notify"
	"tamj/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Errorw("Failed to load config", "error", err)
		return 1
	}
	l := logger.Select(cfg.Log.Development)
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := cfg.Market.OutputPath
	prior, err := market.LoadSnapshot(path)
	if errors.Is(err, market.ErrCorruptSnapshot) {
		l.Warnw("Ignoring unreadable prior snapshot", "path", path, "error", err)
	} else if err != nil {
		l.Errorw("Failed to read prior snapshot", "path", path, "error", err)
		return 1
	}

	source := market.NewYahooClient(cfg.Market.BaseURL, cfg.Market.UserAgent, cfg.Market.Timeout)
	res := market.NewAggregator(source, market.WithLogger(l)).Run(ctx, prior)

	if err := market.SaveSnapshot(path, res.Snapshot); err != nil {
		l.Errorw("Failed to save snapshot", "path", path, "error", err)
		return 1
	}
	l.Infow("Snapshot saved",
		"path", path,
		"mci", res.Snapshot.MCI,
		"fetched", res.Fetched,
		"fallbacks", res.Fallbacks)

	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, l)
		if err != nil {
			l.Warnw("Telegram notification skipped", "error", err)
			return 0
		}
		if err := tg.SendSnapshot(ctx, res); err != nil {
			l.Warnw("Telegram notification failed", "error", err)
		}
	}
	return 0
}
