package models

// Config represents the service configuration
type Config struct {
	// Server config
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// AI config
	AI AIConfig `yaml:"ai"`

	// Audit config
	Audit AuditConfig `yaml:"audit"`
}

// AuditConfig holds the tunables of the reconciliation cascade
type AuditConfig struct {
	// Default surcharge threshold (percent) when the caller omits one
	UmbralSobreprecio float64 `yaml:"umbral_sobreprecio"`

	// Broad fuzzy candidates requested from the catalog per item
	MaxCandidatos int `yaml:"max_candidatos"`

	// Scored candidates offered to the AI per pending item
	TopCandidatos int `yaml:"top_candidatos"`
}

// AIConfig represents AI provider configuration
type AIConfig struct {
	// OpenAI
	OpenAI OpenAIConfig `yaml:"openai"`

	// Gemini
	Gemini GeminiConfig `yaml:"gemini"`

	// Default provider
	DefaultProvider string `yaml:"default_provider"` // "openai" or "gemini"
}

// OpenAIConfig for OpenAI/Azure OpenAI
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"` // For custom endpoints
	Model   string `yaml:"model"`              // Default: "gpt-4o"
}

// GeminiConfig for Google Gemini
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // Default: "gemini-1.5-pro"
}
