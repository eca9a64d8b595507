package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/horrible-little-slime/oaf/config"
	"github.com/horrible-little-slime/oaf/db"
	"github.com/horrible-little-slime/oaf/discord"
	"github.com/horrible-little-slime/oaf/events"
	"github.com/horrible-little-slime/oaf/kol"
	"github.com/horrible-little-slime/oaf/log"
	"github.com/horrible-little-slime/oaf/players"
	"github.com/horrible-little-slime/oaf/wiki"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Configure pretty colored logging.
	opts := log.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}
	handler := log.NewPrettyHandler(os.Stdout, opts)
	slog.SetDefault(slog.New(handler))

	slog.Info("oaf starting")

	cfg := config.Get()
	slog.Info("configuration loaded")

	dbClient, err := db.NewClient(cfg.Database.Directory)
	if err != nil {
		slog.Error("failed to create db client", "error", err)
		os.Exit(1)
	}
	if err := dbClient.Start(ctx); err != nil {
		slog.Error("failed to start db client", "error", err)
		os.Exit(1)
	}

	playerStore, err := players.NewStore(dbClient)
	if err != nil {
		slog.Error("failed to create player store", "error", err)
		os.Exit(1)
	}

	// The event bus carries game-side traffic to the relay.
	bus := events.NewBus()

	session := kol.NewSession(cfg.Kol.Username, cfg.Kol.Password, bus)
	wikiClient := wiki.NewClient()

	functions := []discord.BotFunctionI{
		session.DiscordFunctionStatus(),
		session.DiscordFunctionWhitelist(cfg.Kol.ClanID),
		playerStore.DiscordFunctionClaim(session),
		playerStore.DiscordFunctionWhois(session),
		wikiClient.DiscordFunctionWiki(),
	}

	schedules := []discord.BotScheduleI{
		session.DiscordScheduleWhitelistAudit("0 0 * * * *"),
		playerStore.DiscordScheduleBackup("0 30 4 * * *"),
	}

	discordCfg := discord.BotConfig{
		AppID:             cfg.Discord.AppID,
		BotToken:          cfg.Discord.BotToken,
		AnnounceChannelID: cfg.Discord.RelayChannelID,
	}

	bot, err := discord.NewBot(discordCfg, functions, schedules)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	if cfg.Discord.RelayChannelID != "" {
		bot.AttachRelay(session, cfg.Discord.RelayChannelID, bus)
	} else {
		slog.Warn("no relay channel configured, game chat will not be forwarded")
	}

	chatPoller := kol.NewChatPoller(session, bus)
	chatPoller.Start()

	kmailPoller := kol.NewKmailPoller(session, bus)
	kmailPoller.Start()

	greenboxListener := players.NewGreenboxListener(playerStore, bus)
	greenboxListener.Start()

	slog.Info("oaf is now running")

	// Wait for an interrupt signal to gracefully shut down.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	slog.Info("shutting down")

	chatPoller.Stop()
	kmailPoller.Stop()
	greenboxListener.Stop()
	session.Rollover().Stop()

	if err := bot.Close(); err != nil {
		slog.Error("error during bot shutdown", "error", err)
	}
	if err := dbClient.Stop(); err != nil {
		slog.Error("failed to stop db client", "error", err)
	}
}
