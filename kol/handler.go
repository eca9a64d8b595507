package kol

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/horrible-little-slime/oaf/discord"
)

// StatusRequest has no options; the status command takes no input.
type StatusRequest struct{}

// WhitelistRequest defines the inputs for the whitelist command.
type WhitelistRequest struct {
	Player string `discord:"description:Player name to add to the clan whitelist"`
	Rank   string `discord:"optional,description:Whitelist rank to assign,default:Normal Member"`
}

// DiscordFunctionStatus returns the status command, reporting session and
// rollover state.
func (s *Session) DiscordFunctionStatus() discord.BotFunctionI {
	handler := func(invoker discord.Invoker, req StatusRequest) (*discordgo.InteractionResponseData, error) {
		if s.rollover.Active() {
			return &discordgo.InteractionResponseData{
				Content: "The Kingdom is down for nightly rollover. Try again shortly.",
			}, nil
		}

		if !s.EnsureLoggedIn(context.Background()) {
			return &discordgo.InteractionResponseData{
				Content: "Not logged in and unable to log in right now. Try again shortly.",
			}, nil
		}

		return &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("Logged in as %s. All systems go.", s.username),
		}, nil
	}
	return discord.NewBotFunction("status", handler, nil)
}

// DiscordFunctionWhitelist returns the whitelist command. The underlying
// addition runs as a serialized action sequence.
func (s *Session) DiscordFunctionWhitelist(clanID string) discord.BotFunctionI {
	handler := func(invoker discord.Invoker, req WhitelistRequest) (*discordgo.InteractionResponseData, error) {
		if !s.AddToWhitelist(context.Background(), clanID, req.Player, req.Rank) {
			return nil, fmt.Errorf("could not add %s to the whitelist (is the game up, and is the name right?)", req.Player)
		}

		return &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("Added %s to the clan whitelist as %s.", req.Player, req.Rank),
		}, nil
	}
	return discord.NewBotFunction("whitelist", handler, nil)
}

// DiscordScheduleWhitelistAudit returns a scheduled task that re-scrapes the
// clan whitelist and reports membership changes since the previous run.
func (s *Session) DiscordScheduleWhitelistAudit(cronExpression string) discord.BotScheduleI {
	// Cron fires each run in its own goroutine; a scrape that outlasts the
	// interval overlaps the next run, so the diff state needs a lock.
	var mu sync.Mutex
	var previous map[string]WhitelistMember

	return discord.NewBotSchedule("whitelist_audit", cronExpression, func() (*discordgo.MessageEmbed, error) {
		slog.Info("executing scheduled whitelist audit")

		members := s.WhitelistMembers(context.Background())
		if members == nil {
			// Game down or session trouble; skip this cycle quietly.
			return nil, nil
		}

		mu.Lock()
		defer mu.Unlock()

		current := make(map[string]WhitelistMember, len(members))
		for _, member := range members {
			current[member.ID] = member
		}

		if previous == nil {
			previous = current
			return nil, nil
		}

		var added, removed []WhitelistMember
		for id, member := range current {
			if _, ok := previous[id]; !ok {
				added = append(added, member)
			}
		}
		for id, member := range previous {
			if _, ok := current[id]; !ok {
				removed = append(removed, member)
			}
		}
		previous = current

		if len(added) == 0 && len(removed) == 0 {
			return nil, nil
		}

		description := ""
		for _, member := range added {
			description += fmt.Sprintf("+ %s (#%s) as %s\n", member.Name, member.ID, member.Rank)
		}
		for _, member := range removed {
			description += fmt.Sprintf("- %s (#%s)\n", member.Name, member.ID)
		}

		return &discordgo.MessageEmbed{
			Title:       "Clan Whitelist Changes",
			Description: description,
			Color:       0x00FF00,
			Timestamp:   time.Now().Format(time.RFC3339),
		}, nil
	})
}
