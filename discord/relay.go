package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/horrible-little-slime/oaf/events"
)

// ChatSender is the game-side half of the relay. The kol session implements it.
type ChatSender interface {
	SendChat(ctx context.Context, message string) bool
}

// Relay bridges game chat and one Discord channel in both directions. It
// subscribes to the event bus for game-side traffic (chat, whispers, kmail,
// rollover completion) and forwards relay-channel Discord messages back into
// game chat. The game side publishes regardless of whether a relay exists.
type Relay struct {
	bot       *Bot
	sender    ChatSender
	channelID string
	bus       *events.Bus
	done      chan struct{}
}

// AttachRelay wires a relay between the bot and the given chat sender and
// starts forwarding. Call before any traffic matters; messages published
// earlier are not replayed.
func (b *Bot) AttachRelay(sender ChatSender, channelID string, bus *events.Bus) *Relay {
	r := &Relay{
		bot:       b,
		sender:    sender,
		channelID: channelID,
		bus:       bus,
		done:      make(chan struct{}),
	}
	b.relay = r
	r.start()
	return r
}

func (r *Relay) start() {
	chat := r.bus.Subscribe(events.TopicChatMessage)
	whispers := r.bus.Subscribe(events.TopicWhisper)
	kmails := r.bus.Subscribe(events.TopicKmail)
	rollover := r.bus.Subscribe(events.TopicRolloverComplete)

	go func() {
		for {
			select {
			case <-r.done:
				return
			case event := <-chat:
				if m, ok := event.Payload.(events.ChatMessage); ok {
					r.send(fmt.Sprintf("**[%s] %s**: %s", m.Channel, m.Sender, m.Message))
				}
			case event := <-whispers:
				if m, ok := event.Payload.(events.ChatMessage); ok {
					r.send(fmt.Sprintf("**%s whispers**: %s", m.Sender, m.Message))
				}
			case event := <-kmails:
				if k, ok := event.Payload.(events.Kmail); ok {
					r.sendEmbed(&discordgo.MessageEmbed{
						Title:       fmt.Sprintf("Kmail from %s (#%s)", k.SenderName, k.SenderID),
						Description: k.Message,
						Color:       0x5865F2,
						Timestamp:   time.Now().Format(time.RFC3339),
					})
				}
			case <-rollover:
				r.send("Rollover is complete. The Kingdom is back up.")
			}
		}
	}()
	slog.Info("chat relay started", "channel", r.channelID)
}

func (r *Relay) stop() {
	close(r.done)
}

// onDiscordMessage forwards a message typed in the relay channel into game chat.
func (r *Relay) onDiscordMessage(m *discordgo.MessageCreate) {
	if m.ChannelID != r.channelID || m.Content == "" {
		return
	}

	outbound := fmt.Sprintf("%s: %s", m.Author.Username, m.Content)
	if !r.sender.SendChat(context.Background(), outbound) {
		slog.Warn("failed to forward discord message to game chat", "author", m.Author.Username)
	}
}

func (r *Relay) send(content string) {
	_, err := r.bot.session.ChannelMessageSend(r.channelID, content)
	if err != nil {
		slog.Error("failed to relay message to discord", "channel", r.channelID, "error", err)
	}
}

func (r *Relay) sendEmbed(embed *discordgo.MessageEmbed) {
	_, err := r.bot.session.ChannelMessageSendEmbed(r.channelID, embed)
	if err != nil {
		slog.Error("failed to relay embed to discord", "channel", r.channelID, "error", err)
	}
}
