package speech

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/wolfman30/voice-appointment-confirm/internal/observability/metrics"
	"github.com/wolfman30/voice-appointment-confirm/pkg/logging"
)

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(context.Context, []byte, string, string) (string, error) {
	return s.text, s.err
}

func TestTranscribeOrPlaceholder(t *testing.T) {
	m := metrics.NewTurnMetrics(prometheus.NewRegistry())
	var buf bytes.Buffer
	logger := logging.NewWithWriter("info", &buf)
	ctx := context.Background()

	assert.Equal(t, "yes", TranscribeOrPlaceholder(ctx, stubTranscriber{text: " yes "}, []byte("a"), "webm", "en", logger, m))
	assert.Empty(t, buf.String())

	got := TranscribeOrPlaceholder(ctx, stubTranscriber{err: errors.New("timeout")}, []byte("a"), "webm", "en", logger, m)
	assert.Equal(t, TranscriptionPlaceholder, got)
	assert.Contains(t, buf.String(), "using placeholder")

	assert.Equal(t, TranscriptionPlaceholder, TranscribeOrPlaceholder(ctx, nil, nil, "", "", nil, nil))
}
