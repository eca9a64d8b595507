package discord

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// announceTargets resolves where broadcast messages go: the configured
// announcement channel when one is set, otherwise the first text channel of
// every guild the bot is in.
func (b *Bot) announceTargets() []string {
	if b.config.AnnounceChannelID != "" {
		return []string{b.config.AnnounceChannelID}
	}

	var targets []string
	for _, guild := range b.session.State.Guilds {
		channelID, err := b.firstTextChannel(guild.ID)
		if err != nil {
			slog.Error("no announcement channel in guild", "guild", guild.ID, "error", err)
			continue
		}
		targets = append(targets, channelID)
	}
	return targets
}

// firstTextChannel returns the ID of the first text channel in a guild.
func (b *Bot) firstTextChannel(guildID string) (string, error) {
	channels, err := b.session.GuildChannels(guildID)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve channels for guild %s: %w", guildID, err)
	}

	for _, channel := range channels {
		if channel.Type == discordgo.ChannelTypeGuildText {
			return channel.ID, nil
		}
	}
	return "", fmt.Errorf("no text channel found in guild %s", guildID)
}

// SendMessage broadcasts a plain text message to the announcement targets.
func (b *Bot) SendMessage(content string) {
	for _, channelID := range b.announceTargets() {
		if _, err := b.session.ChannelMessageSend(channelID, content); err != nil {
			slog.Error("failed to send announcement", "channel", channelID, "error", err)
		}
	}
}

// SendEmbed broadcasts an embed to the announcement targets.
func (b *Bot) SendEmbed(embed *discordgo.MessageEmbed) {
	for _, channelID := range b.announceTargets() {
		if _, err := b.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
			slog.Error("failed to send announcement embed", "channel", channelID, "error", err)
		}
	}
}
