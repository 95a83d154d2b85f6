// Package transport abstracts the external messaging transport. The core
// only ever sees two things: an event stream (pairing progress and inbound
// messages) and a send operation. Connection establishment, device pairing
// mechanics, and message encoding all live on the other side of the bridge.
package transport

import (
	"context"
	"errors"
)

// EventType identifies a transport event.
type EventType string

const (
	// EventPairingCode carries the pairing artifact (QR payload) that the
	// end user must scan to authorize the session.
	EventPairingCode EventType = "pairing_code"

	// EventAuthenticated signals that the device completed pairing; the
	// pairing artifact can be discarded.
	EventAuthenticated EventType = "authenticated"

	// EventReady signals the client can send and receive messages.
	EventReady EventType = "ready"

	// EventMessage carries one inbound message.
	EventMessage EventType = "message"

	// EventDisconnected signals the transport connection dropped.
	EventDisconnected EventType = "disconnected"
)

// Event is a single occurrence on a session's transport.
type Event struct {
	Type     EventType
	SenderID string
	Text     string
	FromSelf bool   // set on messages originated by the session itself
	Artifact []byte // pairing artifact payload, EventPairingCode only
}

// ErrSendFailed indicates the transport rejected or lost an outbound
// message.
var ErrSendFailed = errors.New("transport send failed")

// Client is one session's live transport handle.
type Client interface {
	// Start establishes the connection and begins delivering events.
	Start(ctx context.Context) error

	// Send delivers text to a recipient and waits for the transport ack.
	Send(ctx context.Context, recipientID, text string) error

	// Ready reports whether the session finished pairing and can send.
	Ready() bool

	// Events returns the event stream. Closed when the client shuts down.
	Events() <-chan Event

	// Close tears down the connection and closes the event stream.
	Close() error
}

// Factory creates transport clients. Session creation must have no
// transport side effects before the registry conflict check passes, so the
// lifecycle controller calls this only after claiming the identity.
type Factory interface {
	NewClient(sessionID string) (Client, error)
}
