package bootstrap

import (
	appconfig "github.com/wolfman30/voice-appointment-confirm/internal/config"
	"github.com/wolfman30/voice-appointment-confirm/internal/conversation"
	"github.com/wolfman30/voice-appointment-confirm/internal/speech"
	"github.com/wolfman30/voice-appointment-confirm/pkg/logging"
)

// BuildSpeech returns the OpenAI transcriber and synthesizer, or nils when no
// OpenAI key is configured. Speech does not depend on LLM_PROVIDER.
func BuildSpeech(cfg *appconfig.Config, logger *logging.Logger) (speech.Transcriber, speech.Synthesizer) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || !cfg.SpeechEnabled() {
		logger.Warn("speech disabled; OPENAI_API_KEY not set")
		return nil, nil
	}

	client := conversation.NewOpenAIClientFromKey(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	transcriber := speech.NewOpenAITranscriber(client, speech.TranscriberConfig{
		Model:    cfg.TranscriptionModel,
		Language: cfg.TranscriptionLanguage,
		Timeout:  cfg.SpeechTimeout,
	})
	synthesizer := speech.NewOpenAISynthesizer(client, speech.SynthesizerConfig{
		Model:   cfg.SpeechModel,
		Voice:   cfg.SpeechVoice,
		Speed:   cfg.SpeechSpeed,
		Timeout: cfg.SpeechTimeout,
	})
	return transcriber, synthesizer
}
