package kol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/horrible-little-slime/oaf/kol"
)

func TestLoggedOutSignature(t *testing.T) {
	assert.True(t, kol.LoggedOutSignature(loggedOutPage))
	assert.True(t, kol.LoggedOutSignature(`<form name=loginform method=post>`))
	assert.False(t, kol.LoggedOutSignature(`{"pwd":"abc123"}`))
	assert.False(t, kol.LoggedOutSignature(`<html>Your adventure continues.</html>`))
}

func TestRolloverBanner(t *testing.T) {
	assert.True(t, kol.RolloverBanner(rolloverPage))
	assert.True(t, kol.RolloverBanner(`<center>Nightly Maintenance</center>`))
	assert.False(t, kol.RolloverBanner(upPage))
}

func TestParseStatus(t *testing.T) {
	status, err := kol.ParseStatus(`{"playerid":"2264486","name":"OAF","pwd":"d00d"}`)
	require.NoError(t, err)
	assert.Equal(t, "OAF", status.Name)
	assert.Equal(t, "2264486", status.PlayerID)
	assert.Equal(t, "d00d", status.PasswordHash)

	_, err = kol.ParseStatus(loggedOutPage)
	assert.Error(t, err, "an HTML body is not a logged-in status reply")

	_, err = kol.ParseStatus(`{"name":"anonymous"}`)
	assert.Error(t, err, "a reply without a pwd field is not logged in")
}

func TestParseChatMessages(t *testing.T) {
	body := `{
		"msgs": [
			{"type":"public","channel":"clan","msg":"hello there","who":{"name":"Bobson","id":"123"}},
			{"type":"private","msg":"psst","who":{"name":"Whisperer","id":"456"}}
		],
		"last": "1723400000"
	}`

	messages, last, err := kol.ParseChatMessages(body)
	require.NoError(t, err)
	assert.Equal(t, "1723400000", last)
	require.Len(t, messages, 2)

	assert.Equal(t, "clan", messages[0].Channel)
	assert.Equal(t, "Bobson", messages[0].Sender)
	assert.Equal(t, "123", messages[0].SenderID)
	assert.Equal(t, "hello there", messages[0].Message)
	assert.False(t, messages[0].Whisper())

	assert.True(t, messages[1].Whisper())
	assert.Equal(t, "psst", messages[1].Message)
}

func TestParseChatMessagesEmpty(t *testing.T) {
	messages, last, err := kol.ParseChatMessages(`{"msgs":[],"last":"99"}`)
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.Equal(t, "99", last)

	_, _, err = kol.ParseChatMessages(loggedOutPage)
	assert.Error(t, err)
}

func TestParsePlayerProfile(t *testing.T) {
	body := `<html><body><center><b>Bobson Dugnutt</b> (#1197090)<br>
	Level 42<br><b>Class:</b> Accordion Thief</center>
	<b>Clan</b>: <a href="showclan.php?recruiter=1&whichclan=84165">Bonus Adventures from Hell</a>
	</body></html>`

	profile, ok := kol.ParsePlayerProfile(body)
	require.True(t, ok)
	assert.Equal(t, "Bobson Dugnutt", profile.Name)
	assert.Equal(t, "1197090", profile.ID)
	assert.Equal(t, "42", profile.Level)
	assert.Equal(t, "Accordion Thief", profile.Class)
	assert.Equal(t, "84165", profile.ClanID)
	assert.Equal(t, "Bonus Adventures from Hell", profile.ClanName)
}

func TestParsePlayerProfileNotAProfile(t *testing.T) {
	_, ok := kol.ParsePlayerProfile(loggedOutPage)
	assert.False(t, ok)

	_, ok = kol.ParsePlayerProfile("")
	assert.False(t, ok)
}

func TestParseWhitelistMembers(t *testing.T) {
	body := `<html><body><table>
	<tr><th>Player</th><th>Rank</th></tr>
	<tr>
		<td><a href="showplayer.php?who=1197090">Bobson Dugnutt</a></td>
		<td>Normal Member</td>
	</tr>
	<tr>
		<td><a href="showplayer.php?who=2264486">OAF</a></td>
		<td>Dungeon Master</td>
	</tr>
	</table></body></html>`

	members, err := kol.ParseWhitelistMembers(body)
	require.NoError(t, err)
	require.Len(t, members, 2)

	assert.Equal(t, "Bobson Dugnutt", members[0].Name)
	assert.Equal(t, "1197090", members[0].ID)
	assert.Equal(t, "Normal Member", members[0].Rank)

	assert.Equal(t, "OAF", members[1].Name)
	assert.Equal(t, "Dungeon Master", members[1].Rank)
}

func TestParseWhitelistMembersNoTable(t *testing.T) {
	members, err := kol.ParseWhitelistMembers("<html><body>nothing here</body></html>")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestParseKmails(t *testing.T) {
	body := `[
		{"id":"100","fromid":"123","fromname":"Bobson","message":"hi bot"},
		{"id":"101","fromid":"456","fromname":"Whisperer","message":"claim me"}
	]`

	kmails, err := kol.ParseKmails(body)
	require.NoError(t, err)
	require.Len(t, kmails, 2)
	assert.Equal(t, "100", kmails[0].ID)
	assert.Equal(t, "Bobson", kmails[0].SenderName)
	assert.Equal(t, "claim me", kmails[1].Message)

	_, err = kol.ParseKmails(loggedOutPage)
	assert.Error(t, err)
}
