package transport

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const (
	defaultSendTimeout = 30 * time.Second
	eventBuffer        = 64
)

// frame is the JSON wire format spoken with the bridge process.
type frame struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Sender    string `json:"sender,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Text      string `json:"text,omitempty"`
	FromSelf  bool   `json:"from_self,omitempty"`
	Artifact  string `json:"artifact,omitempty"` // base64 pairing payload
	OK        bool   `json:"ok,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BridgeClient is a transport client backed by a websocket connection to
// the external messaging bridge. One connection per session.
type BridgeClient struct {
	sessionID string
	endpoint  string
	logger    zerolog.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	ready   bool
	closed  bool
	pending map[string]chan frame

	events chan Event
}

// BridgeFactory creates BridgeClients against one bridge base URL.
type BridgeFactory struct {
	baseURL string
	logger  zerolog.Logger
}

// NewBridgeFactory creates a factory. baseURL is the bridge websocket
// endpoint, e.g. ws://127.0.0.1:8765.
func NewBridgeFactory(baseURL string, logger zerolog.Logger) *BridgeFactory {
	return &BridgeFactory{
		baseURL: baseURL,
		logger:  logger.With().Str("component", "transport").Logger(),
	}
}

// NewClient creates a client for one session. No connection is made until
// Start.
func (f *BridgeFactory) NewClient(sessionID string) (Client, error) {
	endpoint, err := url.JoinPath(f.baseURL, "session", sessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid bridge URL: %w", err)
	}
	return &BridgeClient{
		sessionID: sessionID,
		endpoint:  endpoint,
		logger:    f.logger.With().Str("session_id", sessionID).Logger(),
		pending:   make(map[string]chan frame),
		events:    make(chan Event, eventBuffer),
	}, nil
}

// Start dials the bridge and begins the read loop.
func (c *BridgeClient) Start(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to dial bridge: %w", err)
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return fmt.Errorf("transport client already closed")
	}
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop()

	c.logger.Info().Str("endpoint", c.endpoint).Msg("Bridge connection established")
	return nil
}

// Ready reports whether the bridge announced the session as paired.
func (c *BridgeClient) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Events returns the event stream.
func (c *BridgeClient) Events() <-chan Event {
	return c.events
}

// Send delivers text to a recipient and waits for the bridge ack.
func (c *BridgeClient) Send(ctx context.Context, recipientID, text string) error {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate frame id: %w", err)
	}

	ack := make(chan frame, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSendFailed
	}
	c.pending[id] = ack
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	out := frame{Type: "send", ID: id, Recipient: recipientID, Text: text}
	c.writeMu.Lock()
	err = c.conn.WriteJSON(out)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultSendTimeout)
		defer cancel()
	}

	select {
	case reply := <-ack:
		if !reply.OK {
			return fmt.Errorf("%w: %s", ErrSendFailed, reply.Error)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrSendFailed, ctx.Err())
	}
}

// Close tears down the connection and closes the event stream. When the
// dial never succeeded there is no read loop to do it, so the stream is
// closed here; otherwise closing the connection makes the read loop exit
// and close it.
func (c *BridgeClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		close(c.events)
		return nil
	}
	return conn.Close()
}

func (c *BridgeClient) readLoop() {
	defer close(c.events)

	for {
		var in frame
		if err := c.conn.ReadJSON(&in); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.ready = false
			c.mu.Unlock()
			if !closed {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					c.logger.Warn().Err(err).Msg("Bridge connection lost")
				}
				c.events <- Event{Type: EventDisconnected}
			}
			return
		}

		switch in.Type {
		case "ack":
			c.mu.Lock()
			ack, ok := c.pending[in.ID]
			c.mu.Unlock()
			if ok {
				ack <- in
			}

		case "pairing_code":
			artifact, err := base64.StdEncoding.DecodeString(in.Artifact)
			if err != nil {
				c.logger.Warn().Err(err).Msg("Bridge sent undecodable pairing artifact")
				continue
			}
			c.events <- Event{Type: EventPairingCode, Artifact: artifact}

		case "authenticated":
			c.events <- Event{Type: EventAuthenticated}

		case "ready":
			c.mu.Lock()
			c.ready = true
			c.mu.Unlock()
			c.events <- Event{Type: EventReady}

		case "message":
			c.events <- Event{
				Type:     EventMessage,
				SenderID: in.Sender,
				Text:     in.Text,
				FromSelf: in.FromSelf,
			}

		default:
			c.logger.Debug().Str("type", in.Type).Msg("Ignoring unknown bridge frame")
		}
	}
}
