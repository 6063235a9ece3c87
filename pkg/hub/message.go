// Package hub fans events out to websocket clients with the channel-based
// register/unregister/broadcast loop.
package hub

import (
	"time"

	"github.com/teslashibe/go-sightline/pkg/announce"
	"github.com/teslashibe/go-sightline/pkg/haptic"
)

// MessageType indicates the websocket message format.
type MessageType int

const (
	JSONMessage MessageType = iota
	BinaryMessage
)

// Message is one broadcast payload.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage creates a JSON message from pre-encoded bytes.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage creates a binary message.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

// Event types.
const (
	EventAnnouncement = "announcement"
	EventHaptic       = "haptic"
	EventMode         = "mode"
)

// Event is the JSON shape pushed to clients and WebRTC peers.
type Event struct {
	Type     string    `json:"type"`
	ID       string    `json:"id,omitempty"`
	Text     string    `json:"text,omitempty"`
	Priority string    `json:"priority,omitempty"`
	Pattern  string    `json:"pattern,omitempty"`
	Mode     string    `json:"mode,omitempty"`
	At       time.Time `json:"at"`
}

// AnnouncementEvent describes an announcement that started speaking.
func AnnouncementEvent(a announce.Announcement) Event {
	return Event{Type: EventAnnouncement, ID: a.ID, Text: a.Text, Priority: a.Priority.String(), At: a.CreatedAt}
}

// HapticEvent describes a triggered pattern.
func HapticEvent(p haptic.Pattern) Event {
	return Event{Type: EventHaptic, Pattern: string(p), At: time.Now()}
}
