package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type BridgeMetrics struct {
	messagesSent     *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
	messagesFailed   *prometheus.CounterVec
	retries          *prometheus.CounterVec
	reversals        *prometheus.CounterVec
}

var (
	bridgeOnce     sync.Once
	bridgeRegistry *BridgeMetrics
)

func Bridge() *BridgeMetrics {
	bridgeOnce.Do(func() {
		bridgeRegistry = &BridgeMetrics{
			messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "bridge_messages_sent_total",
				Help: "Count of outbound messages dispatched by adapter.",
			}, []string{"adapter"}),
			messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "bridge_messages_received_total",
				Help: "Count of inbound messages accepted by adapter.",
			}, []string{"adapter"}),
			messagesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "bridge_messages_failed_total",
				Help: "Count of handler failures recorded by adapter.",
			}, []string{"adapter"}),
			retries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "bridge_message_retries_total",
				Help: "Count of retry attempts by adapter and outcome.",
			}, []string{"adapter", "outcome"}),
			reversals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "bridge_message_reversals_total",
				Help: "Count of reversal attempts by adapter and outcome.",
			}, []string{"adapter", "outcome"}),
		}
		prometheus.MustRegister(
			bridgeRegistry.messagesSent,
			bridgeRegistry.messagesReceived,
			bridgeRegistry.messagesFailed,
			bridgeRegistry.retries,
			bridgeRegistry.reversals,
		)
	})
	return bridgeRegistry
}

func adapterLabel(id uint16) string {
	return strconv.FormatUint(uint64(id), 10)
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func (m *BridgeMetrics) MessageSent(adapterID uint16) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(adapterLabel(adapterID)).Inc()
}

func (m *BridgeMetrics) MessageReceived(adapterID uint16) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(adapterLabel(adapterID)).Inc()
}

func (m *BridgeMetrics) MessageFailed(adapterID uint16) {
	if m == nil {
		return
	}
	m.messagesFailed.WithLabelValues(adapterLabel(adapterID)).Inc()
}

func (m *BridgeMetrics) MessageRetried(adapterID uint16, success bool) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(adapterLabel(adapterID), outcomeLabel(success)).Inc()
}

func (m *BridgeMetrics) MessageReversed(adapterID uint16, success bool) {
	if m == nil {
		return
	}
	m.reversals.WithLabelValues(adapterLabel(adapterID), outcomeLabel(success)).Inc()
}
