package transport

import (
	"context"
	"sync"
)

// FakeClient is an in-memory transport for tests: events are injected with
// Emit, outbound sends are recorded.
type FakeClient struct {
	mu        sync.Mutex
	ready     bool
	started   bool
	closed    bool
	sent      []SentMessage
	sendErr   error
	events    chan Event
	SessionID string
}

// SentMessage records one outbound send.
type SentMessage struct {
	RecipientID string
	Text        string
}

// NewFakeClient creates a fake transport client.
func NewFakeClient(sessionID string) *FakeClient {
	return &FakeClient{
		SessionID: sessionID,
		events:    make(chan Event, eventBuffer),
	}
}

// Start marks the client started.
func (c *FakeClient) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	return nil
}

// Send records the outbound message, or fails with the configured error.
func (c *FakeClient) Send(ctx context.Context, recipientID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, SentMessage{RecipientID: recipientID, Text: text})
	return nil
}

// Ready reports the configured readiness.
func (c *FakeClient) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Events returns the injected event stream.
func (c *FakeClient) Events() <-chan Event {
	return c.events
}

// Close closes the event stream.
func (c *FakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

// Emit injects an event as if it arrived from the transport. Ready events
// also flip the readiness flag, matching the real client.
func (c *FakeClient) Emit(ev Event) {
	if ev.Type == EventReady {
		c.SetReady(true)
	}
	c.events <- ev
}

// SetReady overrides the readiness flag.
func (c *FakeClient) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

// FailSends makes subsequent Send calls return err.
func (c *FakeClient) FailSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// Sent returns a copy of the recorded outbound messages.
func (c *FakeClient) Sent() []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SentMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

// Started reports whether Start was called.
func (c *FakeClient) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// FakeFactory hands out FakeClients and remembers them by session ID.
type FakeFactory struct {
	mu      sync.Mutex
	clients map[string]*FakeClient
	err     error
}

// NewFakeFactory creates a fake transport factory.
func NewFakeFactory() *FakeFactory {
	return &FakeFactory{clients: make(map[string]*FakeClient)}
}

// NewClient returns a fresh FakeClient for the session.
func (f *FakeFactory) NewClient(sessionID string) (Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	client := NewFakeClient(sessionID)
	f.clients[sessionID] = client
	return client, nil
}

// Client returns the fake created for a session, if any.
func (f *FakeFactory) Client(sessionID string) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clients[sessionID]
}

// Fail makes subsequent NewClient calls return err.
func (f *FakeFactory) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}
