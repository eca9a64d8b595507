package players_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/horrible-little-slime/oaf/db"
	"github.com/horrible-little-slime/oaf/players"
)

func newTestStore(t *testing.T) *players.Store {
	t.Helper()

	dbClient, err := db.NewClient(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { dbClient.Stop() })
	require.NoError(t, dbClient.Start(context.Background()))

	store, err := players.NewStore(dbClient)
	require.NoError(t, err)
	return store
}

func TestClaimRoundTrip(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Claim("discord-1", "1197090", "Bobson Dugnutt"))

	player, err := store.ByDiscordID("discord-1")
	require.NoError(t, err)
	assert.Equal(t, "1197090", player.KolID)
	assert.Equal(t, "Bobson Dugnutt", player.KolName)
	assert.False(t, player.ClaimedAt.IsZero())

	byName, err := store.ByKolName("bobson dugnutt")
	require.NoError(t, err)
	assert.Equal(t, "discord-1", byName.DiscordID)
}

func TestClaimReplacesPreviousClaim(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Claim("discord-1", "111", "Old Character"))
	require.NoError(t, store.Claim("discord-1", "222", "New Character"))

	player, err := store.ByDiscordID("discord-1")
	require.NoError(t, err)
	assert.Equal(t, "222", player.KolID)

	_, err = store.ByKolName("Old Character")
	assert.True(t, errors.Is(err, players.ErrNotFound))
}

func TestLookupMissingPlayer(t *testing.T) {
	store := newTestStore(t)

	_, err := store.ByDiscordID("nobody")
	assert.True(t, errors.Is(err, players.ErrNotFound))
}

func TestGreenboxRoundTrip(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.Greenbox("1197090")
	assert.True(t, errors.Is(err, players.ErrNotFound))

	require.NoError(t, store.SaveGreenbox("1197090", "payload-v1"))
	require.NoError(t, store.SaveGreenbox("1197090", "payload-v2"))

	data, updatedAt, err := store.Greenbox("1197090")
	require.NoError(t, err)
	assert.Equal(t, "payload-v2", data)
	assert.False(t, updatedAt.IsZero())
}
