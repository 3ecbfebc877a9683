package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/voice-appointment-confirm/internal/conversation"
	httpmiddleware "github.com/wolfman30/voice-appointment-confirm/internal/http/middleware"
	"github.com/wolfman30/voice-appointment-confirm/internal/voice"
	"github.com/wolfman30/voice-appointment-confirm/internal/webchat"
	"github.com/wolfman30/voice-appointment-confirm/pkg/logging"
)

// Config holds router configuration. Nil handlers leave their routes out.
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	VoiceHandler        *voice.Handler
	WebchatHandler      *webchat.Handler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
	// VoiceRateLimiter guards the speech endpoints, which call paid APIs.
	VoiceRateLimiter *httpmiddleware.RateLimiter
	// GenerationEnabled is reported by /health.
	GenerationEnabled bool
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Get("/health", healthHandler(cfg.GenerationEnabled))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(v1 chi.Router) {
		if h := cfg.ConversationHandler; h != nil {
			v1.Post("/turns", h.Turn)
			v1.Route("/conversations", func(c chi.Router) {
				c.Post("/", h.Start)
				c.Route("/{id}", func(conv chi.Router) {
					conv.Get("/", h.Get)
					conv.Delete("/", h.End)
					conv.Post("/messages", h.Message)
				})
			})
		}
		if h := cfg.VoiceHandler; h != nil {
			v1.Group(func(speech chi.Router) {
				if cfg.VoiceRateLimiter != nil {
					speech.Use(httpmiddleware.RateLimit(cfg.VoiceRateLimiter))
				}
				speech.Post("/process-voice", h.ProcessVoice)
				speech.Post("/tts", h.TextToSpeech)
			})
		}
	})

	if cfg.WebchatHandler != nil {
		r.Get("/ws/conversations", cfg.WebchatHandler.HandleWebSocket)
	}

	return r
}

func healthHandler(generationEnabled bool) http.HandlerFunc {
	mode := "fallback-only"
	if generationEnabled {
		mode = "generative"
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":    "ok",
			"mode":      mode,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
