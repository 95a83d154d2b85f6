// Package dispatch runs the per-message protocol: record the user's turn,
// call the completion service with the windowed context, record the reply,
// persist, and answer through the transport. Each session's dispatch cycle
// is a critical section; different sessions proceed in parallel.
package dispatch

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/amadou/relais/pkg/completion"
	"github.com/amadou/relais/pkg/convo"
	"github.com/amadou/relais/pkg/store"
	"github.com/amadou/relais/pkg/transport"
)

// DefaultWindowSize is the number of non-system messages retained after
// each append.
const DefaultWindowSize = 8

// FallbackReply is the fixed apology sent when the completion service
// fails. End users never see raw errors.
const FallbackReply = "Désolé, une erreur s'est produite."

// Dispatcher orchestrates one dispatch cycle per inbound message.
type Dispatcher struct {
	store      *store.Store
	provider   completion.Provider
	windowSize int
	fallback   string
	logger     zerolog.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Options configures a dispatcher.
type Options struct {
	Store      *store.Store
	Provider   completion.Provider
	WindowSize int    // defaults to DefaultWindowSize
	Fallback   string // defaults to FallbackReply
	Logger     zerolog.Logger
}

// New creates a dispatcher.
func New(opts Options) *Dispatcher {
	if opts.WindowSize <= 0 {
		opts.WindowSize = DefaultWindowSize
	}
	if opts.Fallback == "" {
		opts.Fallback = FallbackReply
	}
	return &Dispatcher{
		store:      opts.Store,
		provider:   opts.Provider,
		windowSize: opts.WindowSize,
		fallback:   opts.Fallback,
		logger:     opts.Logger.With().Str("component", "dispatch").Logger(),
		locks:      make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex serializing dispatch cycles for a session.
func (d *Dispatcher) sessionLock(sessionID string) *sync.Mutex {
	d.locksMu.Lock()
	defer d.locksMu.Unlock()
	lock, ok := d.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[sessionID] = lock
	}
	return lock
}

// HandleInbound runs the dispatch cycle for one inbound message.
//
// The context is trimmed twice per cycle, after the user append and again
// after the assistant append, so the assistant's own reply counts against
// the same window budget as prior history: a window of K retains at most
// K non-system messages, not K exchanges.
//
// On completion failure no assistant turn is recorded; the user still
// receives the fixed fallback reply, and their message stays in the
// context. Persistence failures are logged and do not block the reply.
func (d *Dispatcher) HandleInbound(ctx context.Context, sessionID, systemPrompt string, ev transport.Event, client transport.Client) {
	if ev.Type != transport.EventMessage || ev.FromSelf {
		return
	}

	logger := d.logger.With().Str("session_id", sessionID).Str("sender", ev.SenderID).Logger()

	lock := d.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	conversation, ok := d.store.Get(sessionID)
	if !ok || !conversation.IsWellFormed() {
		conversation = convo.Seed(systemPrompt)
	}

	conversation = convo.AppendAndWindow(conversation,
		convo.Message{Role: convo.RoleUser, Content: ev.Text},
		systemPrompt, d.windowSize)
	d.store.Set(sessionID, conversation)

	reply, err := d.provider.Complete(ctx, conversation)
	if err != nil {
		logger.Error().Err(err).Str("provider", d.provider.Name()).Msg("Completion failed, sending fallback")
		d.reply(ctx, client, ev.SenderID, d.fallback, logger)
		return
	}

	conversation = convo.AppendAndWindow(conversation,
		convo.Message{Role: convo.RoleAssistant, Content: reply},
		systemPrompt, d.windowSize)
	d.store.Set(sessionID, conversation)

	if err := d.store.Save(); err != nil {
		// Reply anyway; the table stays stale on disk until the next
		// successful save.
		logger.Error().Err(err).Msg("Failed to persist context")
	}

	d.reply(ctx, client, ev.SenderID, reply, logger)
	logger.Debug().Int("context_len", len(conversation)).Msg("Dispatch cycle complete")
}

func (d *Dispatcher) reply(ctx context.Context, client transport.Client, recipient, text string, logger zerolog.Logger) {
	if err := client.Send(ctx, recipient, text); err != nil {
		logger.Error().Err(err).Msg("Failed to send reply")
	}
}
