// Package config defines and loads the relais configuration.
package config

// Config is the main relais configuration.
type Config struct {
	// Server holds the administrative HTTP API settings.
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Bridge holds the messaging-transport bridge settings.
	Bridge BridgeConfig `json:"bridge" mapstructure:"bridge"`

	// Completion holds the completion-service settings.
	Completion CompletionConfig `json:"completion" mapstructure:"completion"`

	// Session holds windowing and persistence settings.
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Logging holds logging configuration.
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// DataDir is the base directory for durable state.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds admin HTTP server configuration.
type ServerConfig struct {
	Host    string `json:"host" mapstructure:"host"`
	Port    int    `json:"port" mapstructure:"port"`
	BaseURL string `json:"base_url" mapstructure:"base_url"` // public URL for artifact links
}

// BridgeConfig holds the transport bridge endpoint.
type BridgeConfig struct {
	URL string `json:"url" mapstructure:"url"` // websocket endpoint, e.g. ws://127.0.0.1:8765
}

// CompletionConfig holds completion-service configuration.
type CompletionConfig struct {
	Provider    string  `json:"provider" mapstructure:"provider"` // openai, anthropic
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	BaseURL     string  `json:"base_url" mapstructure:"base_url"` // OpenAI-compatible override, e.g. https://api.deepseek.com
	Model       string  `json:"model" mapstructure:"model"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
}

// SessionConfig holds session windowing and persistence configuration.
type SessionConfig struct {
	WindowSize  int    `json:"window_size" mapstructure:"window_size"`
	StoreFile   string `json:"store_file" mapstructure:"store_file"`
	ArtifactDir string `json:"artifact_dir" mapstructure:"artifact_dir"`
	WatchStore  bool   `json:"watch_store" mapstructure:"watch_store"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Bridge: BridgeConfig{
			URL: "ws://127.0.0.1:8765",
		},
		Completion: CompletionConfig{
			Provider:    "openai",
			BaseURL:     "https://api.deepseek.com",
			Model:       "deepseek-chat",
			MaxTokens:   250,
			Temperature: 0.7,
		},
		Session: SessionConfig{
			WindowSize: 8,
			WatchStore: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}
