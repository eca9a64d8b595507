package players

import (
	"log/slog"
	"strings"

	"github.com/horrible-little-slime/oaf/events"
)

// Players submit their greenbox snapshot by kmailing the bot a message that
// starts with this prefix. Everything after it is the payload.
const greenboxPrefix = "GREENBOX:"

// GreenboxListener watches incoming kmail on the event bus and stores any
// greenbox submissions it finds. Mail without the prefix is someone talking
// to the bot and is left to the relay.
type GreenboxListener struct {
	store *Store
	bus   *events.Bus
	done  chan struct{}
}

// NewGreenboxListener creates a listener over the given store.
func NewGreenboxListener(store *Store, bus *events.Bus) *GreenboxListener {
	return &GreenboxListener{
		store: store,
		bus:   bus,
		done:  make(chan struct{}),
	}
}

// Start begins consuming kmail events until Stop is called.
func (l *GreenboxListener) Start() {
	kmails := l.bus.Subscribe(events.TopicKmail)
	go func() {
		for {
			select {
			case <-l.done:
				return
			case event := <-kmails:
				if kmail, ok := event.Payload.(events.Kmail); ok {
					l.handle(kmail)
				}
			}
		}
	}()
	slog.Info("greenbox listener started")
}

// Stop ends the listener.
func (l *GreenboxListener) Stop() {
	close(l.done)
}

func (l *GreenboxListener) handle(kmail events.Kmail) {
	payload, found := strings.CutPrefix(strings.TrimSpace(kmail.Message), greenboxPrefix)
	if !found {
		return
	}

	if err := l.store.SaveGreenbox(kmail.SenderID, strings.TrimSpace(payload)); err != nil {
		slog.Error("failed to save greenbox", "player_id", kmail.SenderID, "error", err)
		return
	}
	slog.Info("greenbox updated", "player", kmail.SenderName, "player_id", kmail.SenderID)
}
