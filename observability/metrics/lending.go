package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type LendingMetrics struct {
	operations     *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	liquidations   prometheus.Counter
	borrowIndex    *prometheus.GaugeVec
	utilisation    *prometheus.GaugeVec
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lending_operations_total",
				Help: "Count of completed lending operations by kind.",
			}, []string{"op"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lending_rejections_total",
				Help: "Count of rejected lending operations by kind.",
			}, []string{"op"}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lending_liquidations_total",
				Help: "Count of completed liquidations.",
			}),
			borrowIndex: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lending_borrow_index",
				Help: "Current borrow index per asset, scaled to a float.",
			}, []string{"asset"}),
			utilisation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lending_utilisation",
				Help: "Current utilisation ratio per asset.",
			}, []string{"asset"}),
		}
		prometheus.MustRegister(
			lendingRegistry.operations,
			lendingRegistry.rejections,
			lendingRegistry.liquidations,
			lendingRegistry.borrowIndex,
			lendingRegistry.utilisation,
		)
	})
	return lendingRegistry
}

func (m *LendingMetrics) ObserveOperation(op string) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	m.operations.WithLabelValues(op).Inc()
}

func (m *LendingMetrics) ObserveRejection(op string) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	m.rejections.WithLabelValues(op).Inc()
}

func (m *LendingMetrics) ObserveLiquidation() {
	if m == nil {
		return
	}
	m.liquidations.Inc()
}

func (m *LendingMetrics) SetBorrowIndex(asset string, index float64) {
	if m == nil || asset == "" {
		return
	}
	m.borrowIndex.WithLabelValues(asset).Set(index)
}

func (m *LendingMetrics) SetUtilisation(asset string, ratio float64) {
	if m == nil || asset == "" {
		return
	}
	m.utilisation.WithLabelValues(asset).Set(ratio)
}
