package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		want  string
	}{
		{"plus prefix", "+221770000000", "221770000000"},
		{"spaces", "+221 77 000 00 00", "221770000000"},
		{"hyphens and parens", "+1 (555) 000-1234", "15550001234"},
		{"dots", "33.6.00.00.00.00", "33600000000"},
		{"already clean", "221770000000", "221770000000"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeID(tt.phone))
			// Stability: normalizing twice changes nothing.
			assert.Equal(t, tt.want, NormalizeID(NormalizeID(tt.phone)))
		})
	}
}

func TestRegistry_AddConflict(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Add(&Session{ID: "221770000000"}))
	err := r.Add(&Session{ID: "221770000000"})

	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_GetNotFound(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(&Session{ID: "s1"}))

	r.Remove("s1")

	assert.False(t, r.Has("s1"))
	assert.NoError(t, r.Add(&Session{ID: "s1"}))
}

func TestSession_StateTransitions(t *testing.T) {
	s := &Session{ID: "s1", state: StatePendingAuth}
	assert.Equal(t, StatePendingAuth, s.State())

	s.setState(StateReady)
	assert.Equal(t, StateReady, s.State())
}
