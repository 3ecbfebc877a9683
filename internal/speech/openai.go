package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultTranscriptionModel    = openai.Whisper1
	defaultTranscriptionLanguage = "en"
	defaultSpeechModel           = openai.TTSModel1
	defaultSpeechVoice           = openai.VoiceNova
	defaultSpeechSpeed           = 1.0
	defaultSpeechTimeout         = 15 * time.Second
)

// TranscriberConfig tunes the Whisper call.
type TranscriberConfig struct {
	Model    string
	Language string
	Timeout  time.Duration
}

// OpenAITranscriber implements Transcriber with the OpenAI audio API.
type OpenAITranscriber struct {
	client *openai.Client
	cfg    TranscriberConfig
}

func NewOpenAITranscriber(client *openai.Client, cfg TranscriberConfig) *OpenAITranscriber {
	if client == nil {
		panic("speech: openai client cannot be nil")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultTranscriptionModel
	}
	if strings.TrimSpace(cfg.Language) == "" {
		cfg.Language = defaultTranscriptionLanguage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSpeechTimeout
	}
	return &OpenAITranscriber{client: client, cfg: cfg}
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, audio []byte, format, language string) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}
	format = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
	if format == "" {
		format = "webm"
	}
	if strings.TrimSpace(language) == "" {
		language = t.cfg.Language
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.cfg.Model,
		FilePath: "recording." + format,
		Reader:   bytes.NewReader(audio),
		Language: language,
	})
	if err != nil {
		return "", fmt.Errorf("speech: transcription failed: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// SynthesizerConfig tunes the TTS call.
type SynthesizerConfig struct {
	Model   string
	Voice   string
	Speed   float64
	Timeout time.Duration
}

// OpenAISynthesizer implements Synthesizer with the OpenAI speech API (mp3).
type OpenAISynthesizer struct {
	client *openai.Client
	cfg    SynthesizerConfig
}

func NewOpenAISynthesizer(client *openai.Client, cfg SynthesizerConfig) *OpenAISynthesizer {
	if client == nil {
		panic("speech: openai client cannot be nil")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = string(defaultSpeechModel)
	}
	if strings.TrimSpace(cfg.Voice) == "" {
		cfg.Voice = string(defaultSpeechVoice)
	}
	if cfg.Speed <= 0 {
		cfg.Speed = defaultSpeechSpeed
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSpeechTimeout
	}
	return &OpenAISynthesizer{client: client, cfg: cfg}
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.cfg.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.cfg.Voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          s.cfg.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("speech: synthesis failed: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("speech: failed to read synthesized audio: %w", err)
	}
	return audio, nil
}
