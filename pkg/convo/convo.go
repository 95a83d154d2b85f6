package convo

// Message roles. A context never contains any other role value.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation turn. Immutable once created.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Context is the ordered message log for one session. A well-formed context
// is non-empty and has a system message at index 0.
type Context []Message

// Table maps a normalized session ID to its conversation context. The whole
// table is the unit of durability.
type Table map[string]Context

// Seed returns a fresh context holding only the system instruction.
func Seed(systemPrompt string) Context {
	return Context{{Role: RoleSystem, Content: systemPrompt}}
}

// IsWellFormed reports whether the context satisfies its invariants.
func (c Context) IsWellFormed() bool {
	return len(c) > 0 && c[0].Role == RoleSystem
}

// Clone returns a deep copy of the context.
func (c Context) Clone() Context {
	if c == nil {
		return nil
	}
	out := make(Context, len(c))
	copy(out, c)
	return out
}

// AppendAndWindow appends msg to the context and trims it back to the
// window: the system message plus the most recent windowSize elements of
// everything after it. The system message is never dropped; windowSize 0
// leaves only the system instruction.
//
// A corrupted context with no leading system message is repaired first by
// synthesizing one from systemPrompt, so the result is always well-formed.
func AppendAndWindow(c Context, msg Message, systemPrompt string, windowSize int) Context {
	if windowSize < 0 {
		windowSize = 0
	}
	if !c.IsWellFormed() {
		repaired := make(Context, 0, len(c)+1)
		repaired = append(repaired, Message{Role: RoleSystem, Content: systemPrompt})
		repaired = append(repaired, c...)
		c = repaired
	}

	recent := append(c[1:].Clone(), msg)
	if len(recent) > windowSize {
		recent = recent[len(recent)-windowSize:]
	}

	out := make(Context, 0, len(recent)+1)
	out = append(out, c[0])
	out = append(out, recent...)
	return out
}
