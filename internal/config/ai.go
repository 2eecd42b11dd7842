package config

import "os"

// GeminiModels defines which Gemini models to use for different tasks
type GeminiModels struct {
	// Coaching writes the post-run coaching report (quality over speed)
	Coaching string `json:"coaching" yaml:"coaching"`

	// Lessons generates improvement lessons attached to the report
	Lessons string `json:"lessons" yaml:"lessons"`

	// Fillers judges context-dependent filler words (needs to be fast)
	Fillers string `json:"fillers" yaml:"fillers"`
}

// GeminiConfig configures the LLM used for coaching and filler judgement
type GeminiConfig struct {
	APIKey    string       `json:"-" yaml:"api_key"` // Never serialize
	BaseURL   string       `json:"baseUrl" yaml:"base_url"`
	Models    GeminiModels `json:"models" yaml:"models"`
	TimeoutMS int          `json:"timeoutMs" yaml:"timeout_ms"`
}

// TwelveLabsConfig configures the visual analysis service
type TwelveLabsConfig struct {
	APIKey    string `json:"-" yaml:"api_key"`
	BaseURL   string `json:"baseUrl" yaml:"base_url"`
	IndexName string `json:"indexName" yaml:"index_name"`
	Model     string `json:"model" yaml:"model"`
}

// DeepgramConfig configures the speech transcription service
type DeepgramConfig struct {
	APIKey   string `json:"-" yaml:"api_key"`
	BaseURL  string `json:"baseUrl" yaml:"base_url"`
	Model    string `json:"model" yaml:"model"`
	Language string `json:"language" yaml:"language"`
}

// AIConfig holds all upstream AI service configuration
type AIConfig struct {
	Gemini     GeminiConfig     `json:"gemini" yaml:"gemini"`
	TwelveLabs TwelveLabsConfig `json:"twelveLabs" yaml:"twelvelabs"`
	Deepgram   DeepgramConfig   `json:"deepgram" yaml:"deepgram"`
}

// DefaultAIConfig returns the default AI configuration
func DefaultAIConfig() *AIConfig {
	return &AIConfig{
		Gemini: GeminiConfig{
			APIKey:  os.Getenv("GEMINI_API_KEY"),
			BaseURL: "https://generativelanguage.googleapis.com/v1beta/models",
			Models: GeminiModels{
				Coaching: getEnvOrDefault("GEMINI_MODEL_COACHING", "gemini-2.0-flash"),
				Lessons:  getEnvOrDefault("GEMINI_MODEL_LESSONS", "gemini-2.0-flash"),
				Fillers:  getEnvOrDefault("GEMINI_MODEL_FILLERS", "gemini-2.0-flash-lite"),
			},
			TimeoutMS: 30000,
		},
		TwelveLabs: TwelveLabsConfig{
			APIKey:    os.Getenv("TWELVELABS_API_KEY"),
			BaseURL:   "https://api.twelvelabs.io/v1.3",
			IndexName: getEnvOrDefault("TWELVELABS_INDEX_NAME", "coherence-presentations"),
			Model:     "pegasus1.2",
		},
		Deepgram: DeepgramConfig{
			APIKey:   os.Getenv("DEEPGRAM_API_KEY"),
			BaseURL:  "https://api.deepgram.com/v1",
			Model:    "nova-2",
			Language: "en",
		},
	}
}

// IsEnabled returns true if the Gemini API is configured
func (c *GeminiConfig) IsEnabled() bool {
	return c.APIKey != ""
}

// ModelEndpoint returns the full endpoint for a given model
func (c *GeminiConfig) ModelEndpoint(model string) string {
	return c.BaseURL + "/" + model + ":generateContent"
}

func (c *TwelveLabsConfig) IsEnabled() bool {
	return c.APIKey != ""
}

func (c *DeepgramConfig) IsEnabled() bool {
	return c.APIKey != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
