package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const prefix = "containerlog_"

// Operation names a container service call.
type Operation string

const (
	OpCreate     Operation = "create"
	OpGet        Operation = "get"
	OpUpdate     Operation = "update"
	OpStart      Operation = "start"
	OpFinish     Operation = "finish"
	OpDelete     Operation = "delete"
	OpSubscribe  Operation = "subscribe"
	OpListCrew   Operation = "list_crew"
	OpCreateCrew Operation = "create_crew"
)

const (
	resultOK       = "ok"
	resultError    = "error"
	resultRejected = "rejected"
)

var operationsCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: prefix + "operations_total",
		Help: "Number of container operations by outcome",
	},
	[]string{"operation", "result"},
)

var operationDurationHist = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    prefix + "operation_duration_seconds",
		Help:    "Time taken by container operations against the document store",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	},
	[]string{"operation"},
)

var liveSubscriptionsGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: prefix + "live_subscriptions",
		Help: "Number of open live list subscriptions",
	},
)

var subscriptionErrorsCounter = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: prefix + "subscription_errors_total",
		Help: "Number of error events delivered by live subscriptions",
	},
)

type Metrics struct{}

var m = &Metrics{}

func Get() *Metrics {
	return m
}

// RecordOperation counts one call and observes its duration.
func (m *Metrics) RecordOperation(op Operation, err error, duration time.Duration) {
	result := resultOK
	if err != nil {
		result = resultError
	}
	operationsCounter.With(map[string]string{"operation": string(op), "result": result}).Inc()
	operationDurationHist.With(map[string]string{"operation": string(op)}).Observe(duration.Seconds())
}

// RecordRejected counts a call refused before reaching the store.
func (m *Metrics) RecordRejected(op Operation) {
	operationsCounter.With(map[string]string{"operation": string(op), "result": resultRejected}).Inc()
}

func (m *Metrics) SubscriptionOpened() {
	liveSubscriptionsGauge.Inc()
}

func (m *Metrics) SubscriptionClosed() {
	liveSubscriptionsGauge.Dec()
}

func (m *Metrics) RecordSubscriptionError() {
	subscriptionErrorsCounter.Inc()
}
