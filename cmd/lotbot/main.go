// Lotbot entry point: loads configuration, wires the catalog store, auction
// engine, notification dispatcher and Telegram channel, and runs until
// interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lotbot/lotbot/pkg/api"
	"github.com/lotbot/lotbot/pkg/auction"
	"github.com/lotbot/lotbot/pkg/bot"
	"github.com/lotbot/lotbot/pkg/channels/telegram"
	"github.com/lotbot/lotbot/pkg/config"
	"github.com/lotbot/lotbot/pkg/domain"
	"github.com/lotbot/lotbot/pkg/domain/conversation"
	"github.com/lotbot/lotbot/pkg/infrastructure/eventbus"
	"github.com/lotbot/lotbot/pkg/infrastructure/persistence"
	"github.com/lotbot/lotbot/pkg/logger"
	"github.com/lotbot/lotbot/pkg/notify"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "lotbot:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(cfg.LogLevel)

	store, err := persistence.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	bus := eventbus.New()
	defer bus.Close()

	channel, err := telegram.NewChannel(cfg.BotToken)
	if err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(channel, store, bus)
	engine := auction.NewEngine(store, dispatcher, bus)
	admins := domain.NewAdminSet(cfg.ParseAdminIDs())
	router := bot.NewRouter(store, conversation.NewStore(), engine, dispatcher, admins, channel, bus)
	channel.SetRouter(router)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opsServer *api.Server
	if cfg.HTTPAddr != "" {
		opsServer = api.NewServer(store, bus, cfg.OpsAPIKey)
		go func() {
			if err := opsServer.Start(ctx, cfg.HTTPAddr); err != nil {
				logger.ErrorCF("main", "ops API server failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}()
	}

	bus.Publish(domain.NewEvent(domain.EventSystemStartup, map[string]interface{}{
		"admins": len(cfg.ParseAdminIDs()),
	}))
	logger.InfoCF("main", "lotbot started", map[string]interface{}{
		"database": cfg.DatabasePath,
	})

	err = channel.Run(ctx)

	bus.Publish(domain.NewEvent(domain.EventSystemShutdown, nil))
	logger.InfoC("main", "shutting down")

	if opsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if stopErr := opsServer.Stop(shutdownCtx); stopErr != nil {
			logger.WarnCF("main", "ops API shutdown failed", map[string]interface{}{
				"error": stopErr.Error(),
			})
		}
	}
	return err
}
