package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Generation providers accepted in LLM_PROVIDER.
const (
	ProviderOpenAI  = "openai"
	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
	ProviderNone    = "none"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string
	Greeting string

	// Generation backend
	LLMProvider           string
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIModel           string
	GeminiAPIKey          string
	GeminiModel           string
	BedrockModelID        string
	GenerationMaxTokens   int
	GenerationTemperature float64
	GenerationTimeout     time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Sessions; an empty RedisAddr keeps sessions in memory
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SessionTTL    time.Duration

	// Speech
	TranscriptionModel    string
	TranscriptionLanguage string
	SpeechModel           string
	SpeechVoice           string
	SpeechSpeed           float64
	SpeechTimeout         time.Duration
	MaxAudioBytes         int64

	// HTTP
	VoiceRateLimit     float64
	VoiceRateBurst     int
	CORSAllowedOrigins []string
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Greeting: getEnv("GREETING", ""),

		LLMProvider:           strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", ProviderOpenAI))),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", ""),
		BedrockModelID:        getEnv("BEDROCK_MODEL_ID", ""),
		GenerationMaxTokens:   getEnvAsInt("GENERATION_MAX_TOKENS", 150),
		GenerationTemperature: getEnvAsFloat("GENERATION_TEMPERATURE", 0.7),
		GenerationTimeout:     getEnvAsDuration("GENERATION_TIMEOUT", 10*time.Second),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", time.Hour),

		TranscriptionModel:    getEnv("TRANSCRIPTION_MODEL", "whisper-1"),
		TranscriptionLanguage: getEnv("TRANSCRIPTION_LANGUAGE", "en"),
		SpeechModel:           getEnv("SPEECH_MODEL", "tts-1"),
		SpeechVoice:           getEnv("SPEECH_VOICE", "nova"),
		SpeechSpeed:           getEnvAsFloat("SPEECH_SPEED", 1.0),
		SpeechTimeout:         getEnvAsDuration("SPEECH_TIMEOUT", 15*time.Second),
		MaxAudioBytes:         int64(getEnvAsInt("MAX_AUDIO_BYTES", 10<<20)),

		VoiceRateLimit:     getEnvAsFloat("VOICE_RATE_LIMIT", 2),
		VoiceRateBurst:     getEnvAsInt("VOICE_RATE_BURST", 5),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderBedrock, ProviderGemini, ProviderNone:
	default:
		return fmt.Errorf("config: unknown LLM_PROVIDER %q (want openai, bedrock, gemini or none)", c.LLMProvider)
	}
	if c.GenerationMaxTokens <= 0 {
		return fmt.Errorf("config: GENERATION_MAX_TOKENS must be positive, got %d", c.GenerationMaxTokens)
	}
	if c.GenerationTemperature < 0 || c.GenerationTemperature > 2 {
		return fmt.Errorf("config: GENERATION_TEMPERATURE must be within [0, 2], got %v", c.GenerationTemperature)
	}
	return nil
}

// MissingCredentials names what the selected provider still needs. When it
// is non-empty the service runs on the scripted fallback only.
func (c *Config) MissingCredentials() string {
	switch c.LLMProvider {
	case ProviderOpenAI:
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			return "OPENAI_API_KEY"
		}
	case ProviderGemini:
		if strings.TrimSpace(c.GeminiAPIKey) == "" {
			return "GEMINI_API_KEY"
		}
	case ProviderBedrock:
		if strings.TrimSpace(c.BedrockModelID) == "" {
			return "BEDROCK_MODEL_ID"
		}
	}
	return ""
}

// SpeechEnabled reports whether STT/TTS can reach OpenAI.
func (c *Config) SpeechEnabled() bool {
	return strings.TrimSpace(c.OpenAIAPIKey) != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
