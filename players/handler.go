package players

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/horrible-little-slime/oaf/discord"
	"github.com/horrible-little-slime/oaf/kol"
)

// ClaimRequest defines the inputs for the claim command.
type ClaimRequest struct {
	Player string `discord:"description:In-game player ID to claim as yours"`
}

// WhoisRequest defines the inputs for the whois command.
type WhoisRequest struct {
	Player string `discord:"description:In-game player ID or name to look up"`
}

// DiscordFunctionClaim returns the claim command, which links the invoking
// Discord user to a game character after verifying the character exists.
func (s *Store) DiscordFunctionClaim(session *kol.Session) discord.BotFunctionI {
	handler := func(invoker discord.Invoker, req ClaimRequest) (*discordgo.InteractionResponseData, error) {
		body := session.PlayerProfilePage(context.Background(), req.Player)
		profile, ok := kol.ParsePlayerProfile(body)
		if !ok {
			return nil, fmt.Errorf("could not find a player page for %q (try again shortly if the game is down)", req.Player)
		}

		if err := s.Claim(invoker.UserID, profile.ID, profile.Name); err != nil {
			return nil, fmt.Errorf("failed to record claim: %w", err)
		}

		return &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("%s, you are now linked to %s (#%s).", invoker.Username, profile.Name, profile.ID),
		}, nil
	}
	return discord.NewBotFunction("claim", handler, nil)
}

// DiscordFunctionWhois returns the whois command, which scrapes a player's
// profile and shows any linked Discord user.
func (s *Store) DiscordFunctionWhois(session *kol.Session) discord.BotFunctionI {
	handler := func(invoker discord.Invoker, req WhoisRequest) (*discordgo.InteractionResponseData, error) {
		playerID := req.Player
		if player, err := s.ByKolName(req.Player); err == nil {
			playerID = player.KolID
		}

		body := session.PlayerProfilePage(context.Background(), playerID)
		profile, ok := kol.ParsePlayerProfile(body)
		if !ok {
			return nil, fmt.Errorf("could not find a player page for %q", req.Player)
		}

		embed := &discordgo.MessageEmbed{
			Title: fmt.Sprintf("%s (#%s)", profile.Name, profile.ID),
			Color: 0x00FF00,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Level", Value: orUnknown(profile.Level), Inline: true},
				{Name: "Class", Value: orUnknown(profile.Class), Inline: true},
			},
			Timestamp: time.Now().Format(time.RFC3339),
		}
		if profile.ClanName != "" {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name: "Clan", Value: profile.ClanName, Inline: true,
			})
		}

		if _, updatedAt, err := s.Greenbox(profile.ID); err == nil {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name: "Greenbox", Value: "updated " + updatedAt.Format("2006-01-02"), Inline: true,
			})
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		if claimed, err := s.ByKolName(profile.Name); err == nil {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name: "Discord", Value: fmt.Sprintf("<@%s>", claimed.DiscordID), Inline: true,
			})
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		return &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		}, nil
	}
	return discord.NewBotFunction("whois", handler, nil)
}

// DiscordScheduleBackup returns a scheduled task that exports the player
// tables to parquet. It only reports on failure.
func (s *Store) DiscordScheduleBackup(cronExpression string) discord.BotScheduleI {
	return discord.NewBotSchedule("players_backup", cronExpression, func() (*discordgo.MessageEmbed, error) {
		if err := s.Backup(context.Background()); err != nil {
			return &discordgo.MessageEmbed{
				Title:       "Player Store Backup Error",
				Description: fmt.Sprintf("Error exporting player tables: %v", err),
				Color:       0xFF0000,
				Timestamp:   time.Now().Format(time.RFC3339),
			}, nil
		}
		return nil, nil
	})
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
