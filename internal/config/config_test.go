package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "LLM_PROVIDER", "OPENAI_MODEL", "REDIS_ADDR", "SESSION_TTL", "GENERATION_TEMPERATURE", "CORS_ALLOWED_ORIGINS", "SPEECH_VOICE"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.LLMProvider != ProviderOpenAI {
		t.Fatalf("expected openai provider by default, got %s", cfg.LLMProvider)
	}
	if cfg.OpenAIModel != "gpt-4o-mini" {
		t.Fatalf("expected default model, got %s", cfg.OpenAIModel)
	}
	if cfg.RedisAddr != "" {
		t.Fatalf("expected in-memory sessions by default, got %s", cfg.RedisAddr)
	}
	if cfg.SessionTTL != time.Hour {
		t.Fatalf("expected 1h session ttl, got %s", cfg.SessionTTL)
	}
	if cfg.GenerationTemperature != 0.7 || cfg.GenerationMaxTokens != 150 {
		t.Fatalf("unexpected generation defaults: %v / %d", cfg.GenerationTemperature, cfg.GenerationMaxTokens)
	}
	if cfg.SpeechVoice != "nova" {
		t.Fatalf("expected nova voice, got %s", cfg.SpeechVoice)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("expected wildcard CORS default, got %v", cfg.CORSAllowedOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LLM_PROVIDER", " Bedrock ")
	t.Setenv("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku")
	t.Setenv("GENERATION_TEMPERATURE", "0.2")
	t.Setenv("GENERATION_TIMEOUT", "3s")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("MAX_AUDIO_BYTES", "1024")
	t.Setenv("VOICE_RATE_LIMIT", "0.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.LLMProvider != ProviderBedrock {
		t.Fatalf("expected provider normalised to bedrock, got %q", cfg.LLMProvider)
	}
	if cfg.GenerationTemperature != 0.2 || cfg.GenerationTimeout != 3*time.Second {
		t.Fatalf("unexpected generation overrides: %v / %s", cfg.GenerationTemperature, cfg.GenerationTimeout)
	}
	if !cfg.RedisTLS || cfg.RedisAddr != "localhost:6379" || cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("unexpected redis overrides: %+v", cfg)
	}
	if cfg.MaxAudioBytes != 1024 || cfg.VoiceRateLimit != 0.5 {
		t.Fatalf("unexpected voice overrides: %d / %v", cfg.MaxAudioBytes, cfg.VoiceRateLimit)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected CORS origins: %v", cfg.CORSAllowedOrigins)
	}
	if missing := cfg.MissingCredentials(); missing != "" {
		t.Fatalf("expected bedrock credentials satisfied, missing %s", missing)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("GENERATION_MAX_TOKENS", "lots")
	t.Setenv("SESSION_TTL", "forever")
	t.Setenv("SPEECH_SPEED", "fast")
	cfg := Load()
	if cfg.GenerationMaxTokens != 150 || cfg.SessionTTL != time.Hour || cfg.SpeechSpeed != 1.0 {
		t.Fatalf("expected defaults for unparsable values, got %d / %s / %v", cfg.GenerationMaxTokens, cfg.SessionTTL, cfg.SpeechSpeed)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"none provider", func(c *Config) { c.LLMProvider = ProviderNone }, false},
		{"unknown provider", func(c *Config) { c.LLMProvider = "claude" }, true},
		{"zero tokens", func(c *Config) { c.GenerationMaxTokens = 0 }, true},
		{"temperature too hot", func(c *Config) { c.GenerationTemperature = 3 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LLMProvider: ProviderOpenAI, GenerationMaxTokens: 150, GenerationTemperature: 0.7}
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMissingCredentials(t *testing.T) {
	tests := []struct {
		cfg  Config
		want string
	}{
		{Config{LLMProvider: ProviderOpenAI}, "OPENAI_API_KEY"},
		{Config{LLMProvider: ProviderOpenAI, OpenAIAPIKey: "sk"}, ""},
		{Config{LLMProvider: ProviderGemini}, "GEMINI_API_KEY"},
		{Config{LLMProvider: ProviderBedrock}, "BEDROCK_MODEL_ID"},
		{Config{LLMProvider: ProviderNone}, ""},
	}
	for _, tt := range tests {
		if got := tt.cfg.MissingCredentials(); got != tt.want {
			t.Fatalf("%s: expected %q, got %q", tt.cfg.LLMProvider, tt.want, got)
		}
	}
}
