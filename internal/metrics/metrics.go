// Package metrics holds the Prometheus collectors of the matching venue.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/efreitasn/venue/internal/domain"
)

const namespace = "venue"

// Metrics groups the collectors updated by the order service.
type Metrics struct {
	// Commands handled, by command and result (an outcome or "invalid").
	Commands *prometheus.CounterVec
	// Command handling latency, lock wait and cascade included.
	CommandDuration *prometheus.HistogramVec

	Trades         prometheus.Counter
	TradedQuantity prometheus.Counter
	Activations    prometheus.Counter
	Auctions       prometheus.Counter
	StateChanges   *prometheus.CounterVec
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "commands_total",
			Help:      "Order commands handled, by command and result",
		}, []string{"command", "result"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "command_duration_seconds",
			Help:      "Order command handling duration in seconds",
			Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .05},
		}, []string{"command"}),
		Trades: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "trades_total",
			Help:      "Total trades executed",
		}),
		TradedQuantity: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "traded_quantity_total",
			Help:      "Total quantity traded",
		}),
		Activations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "stop_activations_total",
			Help:      "Stop orders activated",
		}),
		Auctions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "auction_openings_total",
			Help:      "Opening auctions run",
		}),
		StateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "state_changes_total",
			Help:      "Matching state changes, by target state",
		}, []string{"state"}),
	}
}

// Register registers every collector on reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.Commands,
		m.CommandDuration,
		m.Trades,
		m.TradedQuantity,
		m.Activations,
		m.Auctions,
		m.StateChanges,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveCommand records one handled command.
func (m *Metrics) ObserveCommand(command, result string, started time.Time) {
	m.Commands.WithLabelValues(command, result).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(time.Since(started).Seconds())
}

// ObserveTrades records executed trades.
func (m *Metrics) ObserveTrades(trades []*domain.Trade) {
	for _, t := range trades {
		m.Trades.Inc()
		m.TradedQuantity.Add(float64(t.Quantity))
	}
}

// Handler serves the collectors gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
