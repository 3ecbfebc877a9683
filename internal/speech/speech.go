// Package speech holds the speech-to-text and text-to-speech collaborators
// used around the dialogue engine.
package speech

import (
	"context"
	"errors"
	"strings"

	"github.com/wolfman30/voice-appointment-confirm/internal/observability/metrics"
	"github.com/wolfman30/voice-appointment-confirm/pkg/logging"
)

// TranscriptionPlaceholder stands in for the user's words when speech could
// not be transcribed, so the turn can still run.
const TranscriptionPlaceholder = "[Audio transcription unavailable - using mock response]"

var (
	// ErrEmptyAudio is returned when there is nothing to transcribe.
	ErrEmptyAudio = errors.New("speech: audio is empty")
	// ErrEmptyText is returned when there is nothing to synthesize.
	ErrEmptyText = errors.New("speech: text is empty")
)

// Transcriber converts recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format, language string) (string, error)
}

// Synthesizer converts text into encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// TranscribeOrPlaceholder never fails: any transcription error, or a missing
// transcriber, yields TranscriptionPlaceholder.
func TranscribeOrPlaceholder(ctx context.Context, t Transcriber, audio []byte, format, language string, logger *logging.Logger, m *metrics.TurnMetrics) string {
	if logger == nil {
		logger = logging.Default()
	}
	if t == nil {
		m.ObserveSpeech("transcribe", false)
		return TranscriptionPlaceholder
	}
	text, err := t.Transcribe(ctx, audio, format, language)
	if err != nil {
		m.ObserveSpeech("transcribe", false)
		logger.Warn("speech: transcription failed, using placeholder", "error", err.Error(), "format", format)
		return TranscriptionPlaceholder
	}
	m.ObserveSpeech("transcribe", true)
	return strings.TrimSpace(text)
}
