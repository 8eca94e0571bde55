// Package metrics holds the HAL's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"tinygo.org/x/drivers"

	"iothat-go/types"
)

const namespace = "iothat"

// Metrics groups every collector the HAL updates. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	i2cTx       *prometheus.CounterVec
	i2cDuration *prometheus.HistogramVec
	readings    *prometheus.CounterVec
	measureErrs *prometheus.CounterVec
	measureDur  *prometheus.HistogramVec
	gpioEvents  *prometheus.CounterVec
	value       *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		i2cTx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "i2c_transactions_total",
			Help:      "I2C transactions by bus and result.",
		}, []string{"bus", "result"}),
		i2cDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "i2c_transaction_seconds",
			Help:      "I2C transaction latency.",
			Buckets:   []float64{.0001, .0005, .001, .0025, .005, .01, .05},
		}, []string{"bus"}),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Readings published by capability kind.",
		}, []string{"kind"}),
		measureErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measure_errors_total",
			Help:      "Failed measurement cycles by device and error code.",
		}, []string{"device", "code"}),
		measureDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "measure_seconds",
			Help:      "Trigger to collect time of successful cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"device"}),
		gpioEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gpio_events_total",
			Help:      "Debounced GPIO edges by device and edge.",
		}, []string{"device", "edge"}),
		value: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading_value",
			Help:      "Last published value per device, kind and field.",
		}, []string{"device", "kind", "field"}),
	}
	if reg != nil {
		reg.MustRegister(m.i2cTx, m.i2cDuration, m.readings, m.measureErrs,
			m.measureDur, m.gpioEvents, m.value)
	}
	return m
}

// RegisterISRDrops exposes a drop counter owned elsewhere.
func RegisterISRDrops(reg prometheus.Registerer, drops func() uint32) {
	if reg == nil {
		return
	}
	reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gpio_isr_drops_total",
		Help:      "GPIO interrupts dropped because the ISR queue was full.",
	}, func() float64 { return float64(drops()) }))
}

func (m *Metrics) Reading(device, kind string, payload any) {
	if m == nil {
		return
	}
	m.readings.WithLabelValues(kind).Inc()
	f, ok := payload.(types.Fielder)
	if !ok {
		return
	}
	for name, v := range f.Fields() {
		m.value.WithLabelValues(device, kind, name).Set(v)
	}
}

func (m *Metrics) MeasureError(device, code string) {
	if m == nil {
		return
	}
	m.measureErrs.WithLabelValues(device, code).Inc()
}

func (m *Metrics) Measured(device string, took time.Duration) {
	if m == nil {
		return
	}
	m.measureDur.WithLabelValues(device).Observe(took.Seconds())
}

func (m *Metrics) GPIOEvent(device, edge string) {
	if m == nil {
		return
	}
	m.gpioEvents.WithLabelValues(device, edge).Inc()
}

// InstrumentI2C counts and times every transaction on bus.
func (m *Metrics) InstrumentI2C(busID string, bus drivers.I2C) drivers.I2C {
	if m == nil {
		return bus
	}
	return &i2c{bus: bus, id: busID, m: m}
}

type i2c struct {
	bus drivers.I2C
	id  string
	m   *Metrics
}

func (b *i2c) Tx(addr uint16, w, r []byte) error {
	start := time.Now()
	err := b.bus.Tx(addr, w, r)
	b.m.i2cDuration.WithLabelValues(b.id).Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	b.m.i2cTx.WithLabelValues(b.id, result).Inc()
	return err
}
