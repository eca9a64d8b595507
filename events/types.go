package events

// Payload types carried on the bus. They live here so that publishers and
// subscribers can share them without depending on each other.

// ChatMessage is one message pulled from the in-game chat stream. Published
// on TopicChatMessage, or TopicWhisper when addressed directly to the bot.
type ChatMessage struct {
	// Type is the server's message kind: "public", "private", "system".
	Type     string
	Channel  string
	Sender   string
	SenderID string
	Message  string
}

// Whisper reports whether the message was sent directly to the bot rather
// than to a channel.
func (m ChatMessage) Whisper() bool {
	return m.Type == "private"
}

// Kmail is one in-game mail message. Published on TopicKmail.
type Kmail struct {
	ID         string
	SenderID   string
	SenderName string
	Message    string
}
