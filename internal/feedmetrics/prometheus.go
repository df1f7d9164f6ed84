package feedmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/marksmiths/datafeed/internal/data"
)

// Prometheus is a Recorder backed by the client_golang registry, grounded on
// the metric-naming and registration style of the pack's Coinbase bot
// (bot_*_total counters, a gauge for live state).
type Prometheus struct {
	slicesEmitted   prometheus.Counter
	slicesSymbols   prometheus.Gauge
	itemsRouted     *prometheus.CounterVec
	handlerErrors   *prometheus.CounterVec
	subscriptionsUp prometheus.Gauge
}

// NewPrometheus builds and registers a Prometheus recorder against reg. Pass
// prometheus.DefaultRegisterer to expose through the default /metrics
// handler.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		slicesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "datafeed_slices_emitted_total",
			Help: "Time slices published to the downstream bridge.",
		}),
		slicesSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "datafeed_slice_symbol_count",
			Help: "Symbol count carried by the most recently emitted time slice.",
		}),
		itemsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datafeed_items_routed_total",
			Help: "Items dispatched from the exchange to a subscription handler, by kind.",
		}, []string{"symbol", "kind"}),
		handlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datafeed_handler_errors_total",
			Help: "Poll/handler errors observed by the exchange, recoverable or fatal.",
		}, []string{"reason"}),
		subscriptionsUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "datafeed_subscriptions_active",
			Help: "Currently registered subscriptions.",
		}),
	}
	reg.MustRegister(p.slicesEmitted, p.slicesSymbols, p.itemsRouted, p.handlerErrors, p.subscriptionsUp)
	return p
}

func (p *Prometheus) SliceEmitted(symbolCount int) {
	p.slicesEmitted.Inc()
	p.slicesSymbols.Set(float64(symbolCount))
}

func (p *Prometheus) TickRouted(symbol data.Symbol, kind data.Kind) {
	p.itemsRouted.WithLabelValues(symbol.String(), kindLabel(kind)).Inc()
}

func (p *Prometheus) HandlerError(reason string) {
	p.handlerErrors.WithLabelValues(reason).Inc()
}

func (p *Prometheus) SubscriptionsActive(n int) {
	p.subscriptionsUp.Set(float64(n))
}

func kindLabel(k data.Kind) string {
	switch k {
	case data.KindTick:
		return "tick"
	case data.KindTradeBar:
		return "bar"
	case data.KindCoarseFundamental:
		return "coarse_fundamental"
	default:
		return "unknown"
	}
}
