// Package session owns session identity and lifecycle.
//
// Invariants:
// - One active session per normalized identity; conflicts are rejected
//   before any transport client is instantiated.
// - Lifecycle moves forward only: pending_auth -> ready. There is no
//   terminated state; process restart is the only teardown path.
// - Prompt updates reset the conversation context to the system message
//   alone, regardless of transport state.
//
// Usage:
//
//	ctl := session.NewController(session.ControllerOptions{...})
//	result, _ := ctl.CreateSession(ctx, session.CreateParams{Phone: "+221 77 000 00 00", ...})
//	_ = result.PairingCode
package session
