// Package completion wraps the external language-model completion services
// behind a single interface. Providers receive the already-windowed message
// slice (system instruction plus recent turns) and return reply text; every
// downstream failure surfaces as a ServiceError so the dispatcher can treat
// network, timeout, and auth problems uniformly.
package completion

import (
	"context"
	"errors"

	"github.com/amadou/relais/pkg/convo"
)

// ErrEmptyReply indicates the service answered without any usable choice.
var ErrEmptyReply = errors.New("completion service returned no reply")

// Provider generates a reply for an ordered, windowed conversation.
type Provider interface {
	// Name identifies the provider for logging.
	Name() string

	// Complete returns the generated reply text. Failures are wrapped in
	// *ServiceError.
	Complete(ctx context.Context, messages []convo.Message) (string, error)
}

// Options are the generation parameters shared by all providers.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// ServiceError wraps any completion-service failure.
type ServiceError struct {
	Provider string
	Err      error
}

func (e *ServiceError) Error() string {
	return "completion service " + e.Provider + ": " + e.Err.Error()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func wrapErr(provider string, err error) error {
	return &ServiceError{Provider: provider, Err: err}
}
