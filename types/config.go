/*
Copyright © 2025 The Forge Authors
*/
package types

// AppConfig represents the complete application configuration
type AppConfig struct {
	Verbose bool          `mapstructure:"verbose"`
	Config  string        `mapstructure:"config"`
	Project ProjectConfig `mapstructure:"project" validate:"required"`
	Store   StoreConfig   `mapstructure:"store" validate:"required"`
	API     APIConfig     `mapstructure:"api" validate:"omitempty"`
	LLM     LLMConfig     `mapstructure:"llm" validate:"omitempty"`
	Editor  EditorConfig  `mapstructure:"editor" validate:"omitempty"`
}

// ProjectConfig holds project-related settings
type ProjectConfig struct {
	RootDir string `mapstructure:"rootDir" validate:"required"`
	// ID of the active project; empty until the first project is created.
	ID   string `mapstructure:"id" validate:"omitempty"`
	Name string `mapstructure:"name" validate:"omitempty"`
}

// StoreConfig selects and configures the project store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=sqlite file http"`
	// File backend settings
	File   string `mapstructure:"file" validate:"omitempty"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json yaml toml"`
	// SQLite backend settings
	DBPath string `mapstructure:"dbPath" validate:"omitempty"`
}

// APIConfig holds settings for the remote Forge API backend.
type APIConfig struct {
	BaseURL string `mapstructure:"baseUrl" validate:"omitempty,url"`
	Token   string `mapstructure:"token" validate:"omitempty"`
	// RequestTimeoutSeconds controls the HTTP client timeout for API calls
	RequestTimeoutSeconds int `mapstructure:"requestTimeoutSeconds" validate:"omitempty,min=5,max=600"`
}

// LLMConfig holds configuration for LLM integration
type LLMConfig struct {
	Provider string `mapstructure:"provider" validate:"omitempty,oneof=google"`
	// Preset is the user-facing model selector (powerful, fast, efficient).
	Preset string `mapstructure:"preset" validate:"omitempty,oneof=powerful fast efficient"`
	APIKey string `mapstructure:"apiKey" validate:"omitempty,min=1"`
	// WebSearch enables the provider's web grounding tool on chat requests.
	WebSearch bool `mapstructure:"webSearch"`
	// RequestTimeoutSeconds controls the client timeout for LLM calls
	RequestTimeoutSeconds int `mapstructure:"requestTimeoutSeconds" validate:"omitempty,min=5,max=600"`
	// Debug enables extra request/response logging within the LLM provider
	Debug bool `mapstructure:"debug"`
}

// EditorConfig tunes the editing surface behavior.
type EditorConfig struct {
	// AutosaveDelayMS is the trailing debounce for keystroke-driven saves.
	AutosaveDelayMS int `mapstructure:"autosaveDelayMs" validate:"omitempty,min=100,max=10000"`
}
