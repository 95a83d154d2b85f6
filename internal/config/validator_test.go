package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateProvider(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateProvider("openai"))
	assert.NoError(t, v.ValidateProvider("anthropic"))
	assert.Error(t, v.ValidateProvider("cohere"))
	assert.Error(t, v.ValidateProvider(""))
}

func TestValidateAPIKey(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateAPIKey("sk-abc123", "openai"))
	assert.NoError(t, v.ValidateAPIKey("sk-ant-abc123", "anthropic"))
	assert.Error(t, v.ValidateAPIKey("", "openai"))
	assert.Error(t, v.ValidateAPIKey("abc123", "openai"))
	assert.Error(t, v.ValidateAPIKey("sk-abc123", "anthropic"))
}

func TestValidateBridgeURL(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateBridgeURL("ws://127.0.0.1:8765"))
	assert.NoError(t, v.ValidateBridgeURL("wss://bridge.example.com"))
	assert.Error(t, v.ValidateBridgeURL("http://127.0.0.1:8765"))
	assert.Error(t, v.ValidateBridgeURL(""))
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	cfg := DefaultConfig()
	cfg.Completion.APIKey = "sk-test"
	assert.Empty(t, v.ValidateConfig(cfg))

	cfg.Completion.Temperature = 1.5
	cfg.Session.WindowSize = -1
	cfg.Server.Port = 0
	errs := v.ValidateConfig(cfg)
	assert.Len(t, errs, 3)
}
