package kol

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/horrible-little-slime/oaf/events"
)

const (
	kmailEndpoint     = "api.php"
	kmailSendEndpoint = "sendmessage.php"

	defaultKmailInterval = time.Minute
)

// Kmail aliases the bus payload type so callers of the fetching and polling
// APIs don't need a second import.
type Kmail = events.Kmail

// FetchKmails pulls the current inbox. Returns nil on any failure.
func (s *Session) FetchKmails(ctx context.Context) []Kmail {
	body := s.Try(ctx, Request{
		Path:     kmailEndpoint,
		Params:   url.Values{"what": {"kmail"}, "for": {userAgent}},
		NeedsPwd: true,
	}, "")
	if body == "" {
		return nil
	}

	kmails, err := ParseKmails(body)
	if err != nil {
		slog.Warn("failed to parse kmail response", "error", err)
		return nil
	}
	return kmails
}

// SendKmail sends an in-game mail to the given player. Best-effort.
func (s *Session) SendKmail(ctx context.Context, playerID, message string) bool {
	body := s.Try(ctx, Request{
		Path: kmailSendEndpoint,
		Body: url.Values{
			"action":  {"send"},
			"towho":   {playerID},
			"message": {message},
		},
		NeedsPwd: true,
	}, "")
	return body != ""
}

// KmailPoller republishes new inbox mail on the event bus. Mail already seen
// in a previous poll is skipped by id.
type KmailPoller struct {
	session  *Session
	bus      *events.Bus
	interval time.Duration
	seen     map[string]bool
	stop     chan struct{}
}

// NewKmailPoller creates a poller over the given session.
func NewKmailPoller(session *Session, bus *events.Bus) *KmailPoller {
	return &KmailPoller{
		session:  session,
		bus:      bus,
		interval: defaultKmailInterval,
		seen:     make(map[string]bool),
		stop:     make(chan struct{}),
	}
}

// Start begins polling in the background until Stop is called.
func (p *KmailPoller) Start() {
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
	slog.Info("kmail poller started", "interval", p.interval)
}

// Stop ends the polling loop.
func (p *KmailPoller) Stop() {
	close(p.stop)
}

func (p *KmailPoller) poll(ctx context.Context) {
	for _, kmail := range p.session.FetchKmails(ctx) {
		if p.seen[kmail.ID] {
			continue
		}
		p.seen[kmail.ID] = true
		p.bus.Publish(events.TopicKmail, kmail)
	}
}
