package dispatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amadou/relais/pkg/completion"
	"github.com/amadou/relais/pkg/convo"
	"github.com/amadou/relais/pkg/store"
	"github.com/amadou/relais/pkg/transport"
)

const testPrompt = "Tu es un agent du service client."

// stubProvider returns scripted replies or a scripted error.
type stubProvider struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   [][]convo.Message
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Complete(_ context.Context, messages []convo.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	snapshot := make([]convo.Message, len(messages))
	copy(snapshot, messages)
	p.calls = append(p.calls, snapshot)
	if p.err != nil {
		return "", p.err
	}
	reply := p.replies[0]
	if len(p.replies) > 1 {
		p.replies = p.replies[1:]
	}
	return reply, nil
}

func testFixture(t *testing.T, provider completion.Provider) (*Dispatcher, *store.Store, *transport.FakeClient) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "sessions.json"), zerolog.Nop())
	require.NoError(t, err)
	d := New(Options{Store: s, Provider: provider, Logger: zerolog.Nop()})
	return d, s, transport.NewFakeClient("221770000000")
}

func inbound(sender, text string) transport.Event {
	return transport.Event{Type: transport.EventMessage, SenderID: sender, Text: text}
}

func TestHandleInbound_HappyPath(t *testing.T) {
	provider := &stubProvider{replies: []string{"Hi there"}}
	d, s, client := testFixture(t, provider)

	d.HandleInbound(context.Background(), "221770000000", testPrompt, inbound("221770000001", "Hello"), client)

	c, ok := s.Get("221770000000")
	require.True(t, ok)
	require.Len(t, c, 3)
	assert.Equal(t, convo.Message{Role: convo.RoleSystem, Content: testPrompt}, c[0])
	assert.Equal(t, convo.Message{Role: convo.RoleUser, Content: "Hello"}, c[1])
	assert.Equal(t, convo.Message{Role: convo.RoleAssistant, Content: "Hi there"}, c[2])

	sent := client.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "221770000001", sent[0].RecipientID)
	assert.Equal(t, "Hi there", sent[0].Text)
}

func TestHandleInbound_ProviderReceivesWindowedContext(t *testing.T) {
	provider := &stubProvider{replies: []string{"ok"}}
	d, _, client := testFixture(t, provider)

	d.HandleInbound(context.Background(), "221770000000", testPrompt, inbound("x", "question"), client)

	require.Len(t, provider.calls, 1)
	payload := provider.calls[0]
	require.NotEmpty(t, payload)
	assert.Equal(t, convo.RoleSystem, payload[0].Role)
	assert.Equal(t, "question", payload[len(payload)-1].Content)
}

func TestHandleInbound_WindowRetention(t *testing.T) {
	// Five successful exchanges produce ten non-system messages; the
	// stored context keeps the system message plus the last eight.
	provider := &stubProvider{replies: []string{"a1", "a2", "a3", "a4", "a5"}}
	d, s, client := testFixture(t, provider)

	for i := 1; i <= 5; i++ {
		d.HandleInbound(context.Background(), "221770000000", testPrompt, inbound("x", fmt.Sprintf("q%d", i)), client)
	}

	c, _ := s.Get("221770000000")
	require.Len(t, c, 9)
	assert.Equal(t, convo.RoleSystem, c[0].Role)
	assert.Equal(t, "q2", c[1].Content)
	assert.Equal(t, "a5", c[8].Content)
}

func TestHandleInbound_CompletionFailure(t *testing.T) {
	provider := &stubProvider{err: &completion.ServiceError{Provider: "stub", Err: errors.New("timeout")}}
	d, s, client := testFixture(t, provider)

	d.HandleInbound(context.Background(), "221770000000", testPrompt, inbound("221770000001", "Hello"), client)

	// The user's turn is recorded, no assistant turn is synthesized.
	c, ok := s.Get("221770000000")
	require.True(t, ok)
	require.Len(t, c, 2)
	assert.Equal(t, convo.RoleUser, c[1].Role)

	sent := client.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, FallbackReply, sent[0].Text)
}

func TestHandleInbound_LoopbackSuppressed(t *testing.T) {
	provider := &stubProvider{replies: []string{"never"}}
	d, s, client := testFixture(t, provider)

	ev := inbound("221770000000", "echo")
	ev.FromSelf = true
	d.HandleInbound(context.Background(), "221770000000", testPrompt, ev, client)

	assert.False(t, s.Has("221770000000"))
	assert.Empty(t, client.Sent())
	assert.Empty(t, provider.calls)
}

func TestHandleInbound_SeedsMissingContext(t *testing.T) {
	provider := &stubProvider{replies: []string{"ok"}}
	d, s, client := testFixture(t, provider)

	require.False(t, s.Has("221770000000"))
	d.HandleInbound(context.Background(), "221770000000", testPrompt, inbound("x", "first contact"), client)

	c, ok := s.Get("221770000000")
	require.True(t, ok)
	assert.True(t, c.IsWellFormed())
	assert.Equal(t, testPrompt, c[0].Content)
}

func TestHandleInbound_RepairsCorruptedContext(t *testing.T) {
	provider := &stubProvider{replies: []string{"ok"}}
	d, s, client := testFixture(t, provider)

	// Simulate legacy damage: a context with no system head.
	s.Set("221770000000", convo.Context{{Role: convo.RoleUser, Content: "orphan"}})

	d.HandleInbound(context.Background(), "221770000000", testPrompt, inbound("x", "hello"), client)

	c, _ := s.Get("221770000000")
	require.True(t, c.IsWellFormed())
	assert.Equal(t, testPrompt, c[0].Content)
}

func TestHandleInbound_SendFailureDoesNotCorruptContext(t *testing.T) {
	provider := &stubProvider{replies: []string{"reply"}}
	d, s, client := testFixture(t, provider)
	client.FailSends(errors.New("socket closed"))

	d.HandleInbound(context.Background(), "221770000000", testPrompt, inbound("x", "hello"), client)

	c, _ := s.Get("221770000000")
	require.Len(t, c, 3)
	assert.Equal(t, convo.RoleAssistant, c[2].Role)
}

func TestHandleInbound_ConcurrentSessionsIndependent(t *testing.T) {
	provider := &stubProvider{replies: []string{"ok"}}
	d, s, _ := testFixture(t, provider)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("2217700000%02d", n)
			client := transport.NewFakeClient(id)
			for j := 0; j < 5; j++ {
				d.HandleInbound(context.Background(), id, testPrompt, inbound("x", fmt.Sprintf("m%d", j)), client)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("2217700000%02d", i)
		c, ok := s.Get(id)
		require.True(t, ok)
		assert.True(t, c.IsWellFormed())
		assert.LessOrEqual(t, len(c), DefaultWindowSize+1)
	}
}
