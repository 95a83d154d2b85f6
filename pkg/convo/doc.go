// Package convo implements the bounded conversation context shared by all
// sessions: an ordered message log whose first element is always the system
// instruction, trimmed to a fixed window of recent turns on every append.
// It also owns the one-way migration from the legacy persisted format where
// a session's value was a bare system-prompt string.
package convo
