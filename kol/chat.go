package kol

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/horrible-little-slime/oaf/events"
)

const (
	chatPollEndpoint = "newchatmessages.php"
	chatSendEndpoint = "submitnewchat.php"

	defaultChatInterval = 3 * time.Second
)

// ChatMessage aliases the bus payload type so callers of the parsing and
// polling APIs don't need a second import.
type ChatMessage = events.ChatMessage

// ChatPoller pulls new chat messages on a fixed interval and republishes
// them on the event bus. A failed poll is absorbed silently; the next tick
// self-heals.
type ChatPoller struct {
	session  *Session
	bus      *events.Bus
	interval time.Duration
	lastSeen string
	stop     chan struct{}
}

// NewChatPoller creates a poller over the given session.
func NewChatPoller(session *Session, bus *events.Bus) *ChatPoller {
	return &ChatPoller{
		session:  session,
		bus:      bus,
		interval: defaultChatInterval,
		stop:     make(chan struct{}),
	}
}

// Start begins polling in the background until Stop is called.
func (p *ChatPoller) Start() {
	ticker := time.NewTicker(p.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.poll(context.Background())
			}
		}
	}()
	slog.Info("chat poller started", "interval", p.interval)
}

// Stop ends the polling loop.
func (p *ChatPoller) Stop() {
	close(p.stop)
}

func (p *ChatPoller) poll(ctx context.Context) {
	params := url.Values{"j": {"1"}}
	if p.lastSeen != "" {
		params.Set("lasttime", p.lastSeen)
	}

	body := p.session.Try(ctx, Request{
		Path:     chatPollEndpoint,
		Params:   params,
		NeedsPwd: true,
	}, "")
	if body == "" {
		return
	}

	messages, last, err := ParseChatMessages(body)
	if err != nil {
		slog.Warn("failed to parse chat poll response", "error", err)
		return
	}
	if last != "" {
		p.lastSeen = last
	}

	for _, message := range messages {
		if message.Whisper() {
			p.bus.Publish(events.TopicWhisper, message)
		} else {
			p.bus.Publish(events.TopicChatMessage, message)
		}
	}
}

// SendChat posts a message to the bot's current chat channel. Returns false
// when the send did not go through; chat sends are best-effort.
func (s *Session) SendChat(ctx context.Context, message string) bool {
	body := s.Try(ctx, Request{
		Path:     chatSendEndpoint,
		Params:   url.Values{"j": {"1"}, "graf": {message}},
		NeedsPwd: true,
	}, "")
	return body != ""
}
