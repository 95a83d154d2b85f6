package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amadou/relais/pkg/session"
	"github.com/amadou/relais/pkg/store"
	"github.com/amadou/relais/pkg/transport"
)

type nopHandler struct{}

func (nopHandler) HandleInbound(context.Context, string, string, transport.Event, transport.Client) {
}

type apiFixture struct {
	server   *httptest.Server
	registry *session.Registry
	factory  *transport.FakeFactory
	store    *store.Store
	dir      string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "sessions.json"), zerolog.Nop())
	require.NoError(t, err)

	registry := session.NewRegistry()
	factory := transport.NewFakeFactory()
	artifactDir := filepath.Join(dir, "qr")

	controller, err := session.NewController(session.ControllerOptions{
		Registry:    registry,
		Store:       st,
		Factory:     factory,
		Handler:     nopHandler{},
		ArtifactDir: artifactDir,
		BaseURL:     "http://localhost:3000",
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)

	srv, err := NewServer(ServerOptions{ArtifactDir: artifactDir}, controller, registry, zerolog.Nop())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &apiFixture{server: ts, registry: registry, factory: factory, store: st, dir: dir}
}

func (f *apiFixture) post(t *testing.T, path string, body map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(f.server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func createBody() map[string]string {
	return map[string]string{
		"phone":           "+221770000000",
		"businessContext": "Boutique de tissus",
		"companyName":     "Chez Awa",
		"supportNumber":   "+221770000099",
	}
}

func TestGenerateSession(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.post(t, "/generate-session", createBody())

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "221770000000", body["sessionId"])
	assert.Equal(t, "000000", body["code"])
	assert.Equal(t, "http://localhost:3000/qr/221770000000.png", body["qrUrl"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestGenerateSession_MissingParams(t *testing.T) {
	f := newAPIFixture(t)

	body := createBody()
	delete(body, "companyName")
	resp, decoded := f.post(t, "/generate-session", body)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decoded["error"], "requis")
}

func TestGenerateSession_Conflict(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.post(t, "/generate-session", createBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, decoded := f.post(t, "/generate-session", createBody())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Session déjà active", decoded["message"])
}

func TestUpdateContext(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.post(t, "/generate-session", createBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := createBody()
	body["companyName"] = "Nouvelle Boutique"
	resp, decoded := f.post(t, "/update-context", body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decoded["success"])
	assert.Contains(t, decoded["newSystemPrompt"], "Nouvelle Boutique")
}

func TestUpdateContext_UnknownSession(t *testing.T) {
	f := newAPIFixture(t)

	resp, decoded := f.post(t, "/update-context", createBody())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Session introuvable", decoded["error"])
}

func TestSendMessage_LifecycleStatuses(t *testing.T) {
	f := newAPIFixture(t)

	send := map[string]string{
		"sender":    "+221770000000",
		"recipient": "+221770000001",
		"message":   "salut",
	}

	// Unknown sender.
	resp, _ := f.post(t, "/send-message", send)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.post(t, "/generate-session", createBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Transport not paired yet.
	resp, _ = f.post(t, "/send-message", send)
	assert.Equal(t, http.StatusTooEarly, resp.StatusCode)

	client := f.factory.Client("221770000000")
	client.Emit(transport.Event{Type: transport.EventReady})
	sess, _ := f.registry.Get("221770000000")
	require.Eventually(t, func() bool { return sess.State() == session.StateReady }, time.Second, 10*time.Millisecond)

	resp, decoded := f.post(t, "/send-message", send)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	details := decoded["details"].(map[string]interface{})
	assert.Equal(t, "221770000001", details["to"])
	assert.Equal(t, float64(len("salut")), details["length"])

	// Transport failures surface as server errors.
	client.FailSends(os.ErrDeadlineExceeded)
	resp, _ = f.post(t, "/send-message", send)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSendMessage_MissingParams(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.post(t, "/send-message", map[string]string{"sender": "+221770000000"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, "ok", decoded["status"])
	assert.Equal(t, float64(0), decoded["sessionCount"])
}

func TestArtifactServing(t *testing.T) {
	f := newAPIFixture(t)

	artifactDir := filepath.Join(f.dir, "qr")
	require.NoError(t, os.MkdirAll(artifactDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(artifactDir, "221770000000.png"), []byte("qr-bytes"), 0600))

	resp, err := http.Get(f.server.URL + "/qr/221770000000.png")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
