package observe

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	onlineConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_online_connections",
			Help: "Number of registered connections by transport",
		},
		[]string{"transport"}, // tcp|websocket
	)

	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total chat messages by pipeline stage",
		},
		[]string{"stage"}, // received|dispatched
	)

	deliveriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_deliveries_total",
		Help: "Total frames successfully written to connections",
	})

	writeFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_write_failures_total",
		Help: "Total connections dropped because a broadcast write failed",
	})

	protocolErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_protocol_errors_total",
		Help: "Total connections closed because of a malformed frame",
	})

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_queue_depth",
		Help: "Messages waiting in the broadcast queue",
	})
)

func init() {
	prometheus.MustRegister(
		onlineConnections,
		messagesTotal,
		deliveriesTotal,
		writeFailuresTotal,
		protocolErrorsTotal,
		queueDepth,
	)
}

const (
	StageReceived   = "received"
	StageDispatched = "dispatched"
)

func IncMessage(stage string)                   { messagesTotal.WithLabelValues(stage).Inc() }
func AddDeliveries(n int)                       { deliveriesTotal.Add(float64(n)) }
func IncWriteFailure()                          { writeFailuresTotal.Inc() }
func IncProtocolError()                         { protocolErrorsTotal.Inc() }
func SetQueueDepth(n int)                       { queueDepth.Set(float64(n)) }
func AddOnline(transport string, delta float64) { onlineConnections.WithLabelValues(transport).Add(delta) }
