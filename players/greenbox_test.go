package players_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/horrible-little-slime/oaf/events"
	"github.com/horrible-little-slime/oaf/players"
)

func TestGreenboxListenerStoresSubmissions(t *testing.T) {
	store := newTestStore(t)
	bus := events.NewBus()

	listener := players.NewGreenboxListener(store, bus)
	listener.Start()
	defer listener.Stop()

	bus.Publish(events.TopicKmail, events.Kmail{
		ID:         "1",
		SenderID:   "1197090",
		SenderName: "Bobson Dugnutt",
		Message:    "GREENBOX: payload-v1",
	})

	require.Eventually(t, func() bool {
		data, _, err := store.Greenbox("1197090")
		return err == nil && data == "payload-v1"
	}, time.Second, 10*time.Millisecond)
}

func TestGreenboxListenerIgnoresOrdinaryMail(t *testing.T) {
	store := newTestStore(t)
	bus := events.NewBus()

	listener := players.NewGreenboxListener(store, bus)
	listener.Start()
	defer listener.Stop()

	bus.Publish(events.TopicKmail, events.Kmail{
		ID:         "2",
		SenderID:   "1197090",
		SenderName: "Bobson Dugnutt",
		Message:    "hello there, nice bot you have",
	})

	// Give the listener a chance to (wrongly) store something.
	time.Sleep(50 * time.Millisecond)

	_, _, err := store.Greenbox("1197090")
	assert.ErrorIs(t, err, players.ErrNotFound)
}
