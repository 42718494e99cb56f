package wemetrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/weegigs/wee-counter-go/we"
)

// Gauge exports one value derived from an entity's state.
type Gauge[T any] struct {
	Name  string
	Help  string
	Value func(state T) float64
}

// Collector exports the snapshots a store publishes, labelled by aggregate
// key.
type Collector[T any] struct {
	gauges      []Gauge[T]
	values      []*prometheus.GaugeVec
	transitions *prometheus.CounterVec
}

// NewCollector registers <namespace>_<gauge> gauges and a
// <namespace>_transitions_total counter with registerer.
func NewCollector[T any](registerer prometheus.Registerer, namespace string, gauges ...Gauge[T]) (*Collector[T], error) {
	collector := &Collector[T]{
		gauges: gauges,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Number of snapshots published.",
		}, []string{"key"}),
	}

	if err := registerer.Register(collector.transitions); err != nil {
		return nil, errors.Wrap(err, "failed to register transitions counter")
	}

	for _, gauge := range gauges {
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      gauge.Name,
			Help:      gauge.Help,
		}, []string{"key"})

		if err := registerer.Register(vec); err != nil {
			return nil, errors.Wrapf(err, "failed to register %s gauge", gauge.Name)
		}

		collector.values = append(collector.values, vec)
	}

	return collector, nil
}

// Observe is a we.Observer.
func (c *Collector[T]) Observe(entity we.Entity[T]) {
	key := entity.Aggregate.Key

	c.transitions.WithLabelValues(key).Inc()
	for i, gauge := range c.gauges {
		c.values[i].WithLabelValues(key).Set(gauge.Value(entity.State))
	}
}
