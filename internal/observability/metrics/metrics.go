package metrics

import "github.com/prometheus/client_golang/prometheus"

// TurnMetrics exposes counters/histograms for the dialogue engine and its
// speech collaborators.
type TurnMetrics struct {
	turnsTotal         *prometheus.CounterVec
	generationFailures prometheus.Counter
	turnLatency        *prometheus.HistogramVec
	slotsFilled        *prometheus.CounterVec
	speechTotal        *prometheus.CounterVec
}

func NewTurnMetrics(reg prometheus.Registerer) *TurnMetrics {
	m := &TurnMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceconfirm",
			Subsystem: "dialogue",
			Name:      "turns_total",
			Help:      "Turns processed by reply strategy and resulting stage",
		}, []string{"strategy", "stage"}),
		generationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voiceconfirm",
			Subsystem: "dialogue",
			Name:      "generation_failures_total",
			Help:      "Generation backend failures that triggered the scripted fallback",
		}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voiceconfirm",
			Subsystem: "dialogue",
			Name:      "turn_latency_seconds",
			Help:      "End to end latency of one turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy"}),
		slotsFilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceconfirm",
			Subsystem: "dialogue",
			Name:      "slots_filled_total",
			Help:      "Appointment slots populated by extraction",
		}, []string{"field"}),
		speechTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceconfirm",
			Subsystem: "speech",
			Name:      "requests_total",
			Help:      "Speech-to-text and text-to-speech calls by outcome",
		}, []string{"operation", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.generationFailures, m.turnLatency, m.slotsFilled, m.speechTotal)
	return m
}

func (m *TurnMetrics) ObserveTurn(strategy, stage string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(strategy, stage).Inc()
	m.turnLatency.WithLabelValues(strategy).Observe(seconds)
}

func (m *TurnMetrics) ObserveGenerationFailure() {
	if m == nil {
		return
	}
	m.generationFailures.Inc()
}

func (m *TurnMetrics) ObserveSlotFilled(field string) {
	if m == nil {
		return
	}
	m.slotsFilled.WithLabelValues(field).Inc()
}

// ObserveSpeech records an STT ("transcribe") or TTS ("synthesize") outcome.
func (m *TurnMetrics) ObserveSpeech(operation string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.speechTotal.WithLabelValues(operation, status).Inc()
}
