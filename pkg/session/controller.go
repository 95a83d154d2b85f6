package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/amadou/relais/pkg/convo"
	"github.com/amadou/relais/pkg/prompt"
	"github.com/amadou/relais/pkg/store"
	"github.com/amadou/relais/pkg/transport"
)

// pairingCodeLength is how many trailing characters of the session ID form
// the short pairing code shown to operators.
const pairingCodeLength = 6

// InboundHandler processes one inbound transport message for a session.
// Implemented by the dispatcher.
type InboundHandler interface {
	HandleInbound(ctx context.Context, sessionID, systemPrompt string, ev transport.Event, client transport.Client)
}

// ControllerOptions configures a lifecycle controller.
type ControllerOptions struct {
	Registry    *Registry
	Store       *store.Store
	Factory     transport.Factory
	Handler     InboundHandler
	ArtifactDir string // where pairing QR artifacts are written
	BaseURL     string // public base URL for artifact links
	Logger      zerolog.Logger
}

// Controller creates sessions, drives their pairing state machine from
// transport events, and applies administrative prompt updates.
type Controller struct {
	registry    *Registry
	store       *store.Store
	factory     transport.Factory
	handler     InboundHandler
	artifactDir string
	baseURL     string
	logger      zerolog.Logger
}

// NewController creates a lifecycle controller.
func NewController(opts ControllerOptions) (*Controller, error) {
	if opts.Registry == nil || opts.Store == nil || opts.Factory == nil || opts.Handler == nil {
		return nil, fmt.Errorf("registry, store, factory and handler are required")
	}
	if opts.ArtifactDir == "" {
		opts.ArtifactDir = "qr"
	}
	return &Controller{
		registry:    opts.Registry,
		store:       opts.Store,
		factory:     opts.Factory,
		handler:     opts.Handler,
		artifactDir: opts.ArtifactDir,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		logger:      opts.Logger.With().Str("component", "session").Logger(),
	}, nil
}

// CreateParams are the tenant parameters for session creation and prompt
// updates.
type CreateParams struct {
	Phone           string
	BusinessContext string
	CompanyName     string
	SupportNumber   string
}

// CreateResult describes a newly created session.
type CreateResult struct {
	SessionID   string
	PairingCode string
	ArtifactURL string
}

// CreateSession claims the identity, seeds its conversation context, and
// brings up a transport client. The registry conflict check happens before
// the client is instantiated, so a duplicate identity produces no transport
// side effects.
func (c *Controller) CreateSession(ctx context.Context, p CreateParams) (*CreateResult, error) {
	sessionID := NormalizeID(p.Phone)
	if sessionID == "" {
		return nil, fmt.Errorf("phone yields an empty session id")
	}

	systemPrompt := prompt.Build(p.BusinessContext, p.CompanyName, p.SupportNumber)
	sess := &Session{
		ID:           sessionID,
		SystemPrompt: systemPrompt,
		state:        StatePendingAuth,
	}

	// Claiming the identity is the conflict gate; everything after this
	// must undo the claim on failure.
	if err := c.registry.Add(sess); err != nil {
		return nil, err
	}

	if existing, ok := c.store.Get(sessionID); !ok || !existing.IsWellFormed() {
		c.store.Set(sessionID, convo.Seed(systemPrompt))
		if err := c.store.Save(); err != nil {
			c.registry.Remove(sessionID)
			return nil, fmt.Errorf("failed to persist initial context: %w", err)
		}
	}

	client, err := c.factory.NewClient(sessionID)
	if err != nil {
		c.registry.Remove(sessionID)
		return nil, fmt.Errorf("failed to create transport client: %w", err)
	}
	sess.Client = client

	go c.pumpEvents(ctx, sess)

	if err := client.Start(ctx); err != nil {
		c.registry.Remove(sessionID)
		client.Close()
		return nil, fmt.Errorf("failed to start transport client: %w", err)
	}

	c.logger.Info().Str("session_id", sessionID).Msg("Session created, awaiting pairing")

	return &CreateResult{
		SessionID:   sessionID,
		PairingCode: pairingCode(sessionID),
		ArtifactURL: c.artifactURL(sessionID),
	}, nil
}

// UpdateResult describes an applied prompt update.
type UpdateResult struct {
	SessionID       string
	NewSystemPrompt string
}

// UpdateContext replaces a session's system instruction and wipes its
// conversation history, leaving a context of length one. Valid in any
// lifecycle state as long as a context exists for the identity, including
// after a restart when no transport handle is live.
func (c *Controller) UpdateContext(p CreateParams) (*UpdateResult, error) {
	sessionID := NormalizeID(p.Phone)
	if !c.store.Has(sessionID) {
		return nil, ErrNotFound
	}

	newPrompt := prompt.Build(p.BusinessContext, p.CompanyName, p.SupportNumber)
	c.store.Set(sessionID, convo.Seed(newPrompt))
	if err := c.store.Save(); err != nil {
		return nil, fmt.Errorf("failed to persist updated context: %w", err)
	}

	if sess, err := c.registry.Get(sessionID); err == nil {
		sess.SetSystemPrompt(newPrompt)
	}

	c.logger.Info().Str("session_id", sessionID).Msg("System prompt replaced, history wiped")

	return &UpdateResult{SessionID: sessionID, NewSystemPrompt: newPrompt}, nil
}

// SendResult describes a delivered operator message.
type SendResult struct {
	From   string
	To     string
	Length int
}

// SendMessage delivers an operator-initiated message through a session's
// transport. Fails with ErrNotFound for unknown senders and ErrNotReady
// while pairing is incomplete.
func (c *Controller) SendMessage(ctx context.Context, sender, recipient, text string) (*SendResult, error) {
	senderID := NormalizeID(sender)
	recipientID := NormalizeID(recipient)

	sess, err := c.registry.Get(senderID)
	if err != nil {
		return nil, err
	}
	if sess.State() != StateReady {
		return nil, ErrNotReady
	}

	if err := sess.Client.Send(ctx, recipientID, text); err != nil {
		return nil, fmt.Errorf("%w: %v", transport.ErrSendFailed, err)
	}

	return &SendResult{From: senderID, To: recipientID, Length: len(text)}, nil
}

// Close shuts down every registered transport client.
func (c *Controller) Close() {
	for _, sess := range c.registry.List() {
		if sess.Client != nil {
			if err := sess.Client.Close(); err != nil {
				c.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("Failed to close transport client")
			}
		}
	}
}

// pumpEvents drives one session's state machine from its transport event
// stream. Runs until the stream closes.
func (c *Controller) pumpEvents(ctx context.Context, sess *Session) {
	logger := c.logger.With().Str("session_id", sess.ID).Logger()

	for ev := range sess.Client.Events() {
		switch ev.Type {
		case transport.EventPairingCode:
			if err := c.writeArtifact(sess.ID, ev.Artifact); err != nil {
				logger.Error().Err(err).Msg("Failed to write pairing artifact")
			} else {
				logger.Info().Msg("Pairing artifact generated")
			}

		case transport.EventAuthenticated:
			// Artifact cleanup is best-effort; a busy file is retried by
			// the janitor sweep later.
			if err := c.removeArtifact(sess.ID); err != nil {
				logger.Warn().Err(err).Msg("Pairing artifact cleanup deferred")
			} else {
				logger.Info().Msg("Pairing artifact removed")
			}

		case transport.EventReady:
			sess.setState(StateReady)
			logger.Info().Msg("Session ready")

		case transport.EventMessage:
			if ev.FromSelf {
				continue
			}
			c.handler.HandleInbound(ctx, sess.ID, sess.Prompt(), ev, sess.Client)

		case transport.EventDisconnected:
			logger.Warn().Msg("Transport disconnected")
		}
	}

	logger.Debug().Msg("Event stream closed")
}

// ArtifactPath returns where a session's pairing artifact is written.
func (c *Controller) ArtifactPath(sessionID string) string {
	return filepath.Join(c.artifactDir, sessionID+".png")
}

func (c *Controller) artifactURL(sessionID string) string {
	return c.baseURL + "/qr/" + sessionID + ".png"
}

func (c *Controller) writeArtifact(sessionID string, payload []byte) error {
	if err := os.MkdirAll(c.artifactDir, 0700); err != nil {
		return err
	}
	return os.WriteFile(c.ArtifactPath(sessionID), payload, 0600)
}

func (c *Controller) removeArtifact(sessionID string) error {
	err := os.Remove(c.ArtifactPath(sessionID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func pairingCode(sessionID string) string {
	if len(sessionID) <= pairingCodeLength {
		return sessionID
	}
	return sessionID[len(sessionID)-pairingCodeLength:]
}
