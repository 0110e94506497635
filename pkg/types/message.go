package types

import "time"

// Channel names one side of the bridge
type Channel string

const (
	// ChannelWebview carries window controls posted by the page
	ChannelWebview Channel = "webview"
	// ChannelIPC carries messages between the script runtime and the host
	ChannelIPC Channel = "ipc"
)

// Message is a payload crossing the bridge. The payload is opaque to the
// relay; only the host dispatcher interprets webview command strings.
type Message struct {
	ID      ID        `json:"id" msgpack:"id"`
	Channel Channel   `json:"channel,omitempty" msgpack:"channel,omitempty"`
	Payload string    `json:"payload" msgpack:"payload"`
	SentAt  time.Time `json:"sent_at" msgpack:"sent_at"`
}

// NewMessage creates a message with a fresh ID and the current time
func NewMessage(payload string) Message {
	return Message{
		ID:      GenerateID(),
		Payload: payload,
		SentAt:  time.Now(),
	}
}

// String returns the payload
func (m Message) String() string {
	return m.Payload
}
