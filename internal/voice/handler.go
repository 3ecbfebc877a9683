package voice

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/wolfman30/voice-appointment-confirm/internal/appointment"
	"github.com/wolfman30/voice-appointment-confirm/internal/conversation"
	"github.com/wolfman30/voice-appointment-confirm/internal/observability/metrics"
	"github.com/wolfman30/voice-appointment-confirm/internal/speech"
	"github.com/wolfman30/voice-appointment-confirm/pkg/logging"
)

const (
	defaultMaxAudioBytes = 10 << 20
	maxTTSBodyBytes      = 64 << 10
)

// ProcessVoiceResponse mirrors what the browser client renders after a turn.
type ProcessVoiceResponse struct {
	Transcription      string              `json:"transcription"`
	Response           string              `json:"response"`
	AppointmentDetails appointment.Details `json:"appointmentDetails"`
	Stage              appointment.Stage   `json:"stage"`
	Strategy           string              `json:"strategy"`
}

// Handler serves the recorded-audio turn and text-to-speech endpoints.
type Handler struct {
	orchestrator  *conversation.Orchestrator
	transcriber   speech.Transcriber
	synthesizer   speech.Synthesizer
	metrics       *metrics.TurnMetrics
	logger        *logging.Logger
	maxAudioBytes int64
	language      string
}

// Config carries the optional collaborators. A nil Transcriber always yields
// the placeholder text; a nil Synthesizer makes /tts answer 204.
type Config struct {
	Transcriber   speech.Transcriber
	Synthesizer   speech.Synthesizer
	Metrics       *metrics.TurnMetrics
	MaxAudioBytes int64
	Language      string
}

func NewHandler(orchestrator *conversation.Orchestrator, cfg Config, logger *logging.Logger) *Handler {
	if orchestrator == nil {
		panic("voice: orchestrator cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = defaultMaxAudioBytes
	}
	return &Handler{
		orchestrator:  orchestrator,
		transcriber:   cfg.Transcriber,
		synthesizer:   cfg.Synthesizer,
		metrics:       cfg.Metrics,
		logger:        logger,
		maxAudioBytes: cfg.MaxAudioBytes,
		language:      cfg.Language,
	}
}

// ProcessVoice handles POST /v1/process-voice: multipart "audio" plus the
// JSON encoded "conversationHistory" and "appointmentDetails" fields.
func (h *Handler) ProcessVoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxAudioBytes+(1<<20))
	if err := r.ParseMultipartForm(h.maxAudioBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Audio file too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "No audio file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()
	audio, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read audio", http.StatusBadRequest)
		return
	}
	if len(audio) == 0 {
		http.Error(w, "No audio file provided", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	transcription := speech.TranscribeOrPlaceholder(ctx, h.transcriber, audio, audioFormat(header.Filename, header.Header.Get("Content-Type")), h.language, h.logger, h.metrics)

	result := h.orchestrator.ProcessTurn(ctx, conversation.TurnRequest{
		ConversationID: r.FormValue("conversationId"),
		Utterance:      transcription,
		History:        conversation.ParseHistory([]byte(r.FormValue("conversationHistory"))),
		Details:        appointment.ParseDetails([]byte(r.FormValue("appointmentDetails"))),
	})
	if ctx.Err() != nil {
		h.logger.Info("voice: turn abandoned by client")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, ProcessVoiceResponse{
		Transcription:      transcription,
		Response:           result.Reply,
		AppointmentDetails: result.Details,
		Stage:              result.Stage,
		Strategy:           string(result.Strategy),
	})
}

// TextToSpeech handles POST /v1/tts. Synthesis failures answer 204 so the
// client simply stays silent.
func (h *Handler) TextToSpeech(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxTTSBodyBytes)).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		http.Error(w, "No text provided", http.StatusBadRequest)
		return
	}
	if h.synthesizer == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	audio, err := h.synthesizer.Synthesize(r.Context(), req.Text)
	if err != nil || len(audio) == 0 {
		h.metrics.ObserveSpeech("synthesize", false)
		if err != nil {
			h.logger.Warn("voice: speech synthesis failed", "error", err.Error())
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.metrics.ObserveSpeech("synthesize", true)

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio); err != nil {
		h.logger.Debug("voice: failed to write audio", "error", err)
	}
}

// audioFormat picks the container extension Whisper should see.
func audioFormat(filename, contentType string) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."); ext != "" {
		return ext
	}
	switch {
	case strings.Contains(contentType, "wav"):
		return "wav"
	case strings.Contains(contentType, "mpeg"), strings.Contains(contentType, "mp3"):
		return "mp3"
	case strings.Contains(contentType, "ogg"):
		return "ogg"
	case strings.Contains(contentType, "mp4"), strings.Contains(contentType, "m4a"):
		return "m4a"
	default:
		return "webm"
	}
}

func writeJSON(w http.ResponseWriter, logger *logging.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("voice: failed to write JSON response", "error", err)
	}
}
