package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/rh-crypto-trader/internal/scheduler"
	"github.com/rickgao/rh-crypto-trader/internal/strategy"
)

const namespace = "trader"

// Metrics holds the trader collectors on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	ticks         *prometheus.CounterVec
	actions       *prometheus.CounterVec
	orders        *prometheus.CounterVec
	gatewayErrors *prometheus.CounterVec
	buyingPower   prometheus.Gauge
	lastPrice     *prometheus.GaugeVec
	openOrder     *prometheus.GaugeVec
	tickDuration  *prometheus.HistogramVec
}

// New creates and registers the collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "ticks_total", Help: "Ticks run, by result"},
			[]string{"symbol", "result"},
		),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "actions_total", Help: "Decisions taken, by kind"},
			[]string{"symbol", "action"},
		),
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "orders_total", Help: "Order submissions, by outcome"},
			[]string{"symbol", "action", "outcome"},
		),
		gatewayErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "gateway_errors_total", Help: "Failed gateway calls"},
			[]string{"symbol", "op", "kind"},
		),
		buyingPower: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "buying_power_usd", Help: "Last observed buying power"},
		),
		lastPrice: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Name: "last_price", Help: "Last observed bid"},
			[]string{"symbol"},
		),
		openOrder: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Name: "open_order", Help: "1 while an order is tracked as open"},
			[]string{"symbol"},
		),
		tickDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tick_duration_seconds",
				Help:      "Wall time of one tick",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"symbol"},
		),
	}

	m.registry.MustRegister(
		m.ticks, m.actions, m.orders, m.gatewayErrors,
		m.buyingPower, m.lastPrice, m.openOrder, m.tickDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe records one tick. It satisfies scheduler.Publisher.
func (m *Metrics) Observe(res scheduler.TickResult) {
	m.ticks.WithLabelValues(res.Symbol, res.Result()).Inc()
	m.tickDuration.WithLabelValues(res.Symbol).Observe(res.Duration.Seconds())

	if !res.BuyingPower.IsZero() {
		m.buyingPower.Set(res.BuyingPower.InexactFloat64())
	}
	if res.Quote.Bid.IsPositive() {
		m.lastPrice.WithLabelValues(res.Symbol).Set(res.Quote.Bid.InexactFloat64())
	}

	open := 0.0
	if res.State.OpenOrderID != "" {
		open = 1
	}
	m.openOrder.WithLabelValues(res.Symbol).Set(open)

	if res.SkipReason == "" {
		kind := res.Action.Kind
		if kind == "" {
			kind = strategy.Hold
		}
		m.actions.WithLabelValues(res.Symbol, string(kind)).Inc()
		if !res.Action.IsHold() && res.Outcome != "" && res.Outcome != scheduler.OutcomeNone {
			m.orders.WithLabelValues(res.Symbol, string(kind), string(res.Outcome)).Inc()
		}
	}

	if res.Err != nil {
		op := res.FailedOp
		if op == "" {
			op = "unknown"
		}
		m.gatewayErrors.WithLabelValues(res.Symbol, op, scheduler.ErrorKind(res.Err)).Inc()
	}
}

// Publish implements scheduler.Publisher.
func (m *Metrics) Publish(res scheduler.TickResult) {
	m.Observe(res)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
