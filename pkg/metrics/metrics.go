package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the chat service's Prometheus collectors.
type Metrics struct {
	ChatRequests       *prometheus.CounterVec
	ChatRequestLatency prometheus.Histogram
	GenerationLatency  prometheus.Histogram
	Fallbacks          *prometheus.CounterVec
	Emotions           *prometheus.CounterVec
	CTAShown           *prometheus.CounterVec
	PersistenceErrors  *prometheus.CounterVec
	CheckoutClicks     *prometheus.CounterVec
}

// New registers all collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer, sessions func() int) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		// outcome: "generated", "fallback" or "apology"
		ChatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "personachat_chat_requests_total",
			Help: "Total number of chat turns by outcome",
		}, []string{"outcome"}),

		ChatRequestLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "personachat_chat_request_duration_seconds",
			Help:    "End to end chat turn latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),

		GenerationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "personachat_generation_duration_seconds",
			Help:    "Text generation call latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
		}),

		Fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "personachat_fallback_responses_total",
			Help: "Canned replies served instead of generated ones, by reason",
		}, []string{"reason"}),

		Emotions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "personachat_emotions_total",
			Help: "Classified user messages by emotion label",
		}, []string{"emotion"}),

		CTAShown: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "personachat_cta_shown_total",
			Help: "Promotional prompts attached to replies, by target action",
		}, []string{"action"}),

		PersistenceErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "personachat_persistence_errors_total",
			Help: "Failed store writes by operation",
		}, []string{"operation"}),

		CheckoutClicks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "personachat_checkout_clicks_total",
			Help: "Checkout links handed out, by pack",
		}, []string{"pack"}),
	}

	if sessions != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "personachat_sessions_active",
			Help: "Number of live chat sessions",
		}, func() float64 {
			return float64(sessions())
		})
	}

	return m
}

// Nop returns metrics registered on a private registry, for callers that do not export them.
func Nop() *Metrics {
	return New(prometheus.NewRegistry(), nil)
}
