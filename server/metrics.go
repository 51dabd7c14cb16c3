package server

import (
    "github.com/prometheus/client_golang/prometheus"

    . "github.com/PelionIoT/dbsync/protocol"
)

var prometheusConnectionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
    Namespace: "dbsync",
    Subsystem: "server",
    Name: "open_connections",
    Help: "Number of client connections currently open",
})

var prometheusMessagesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
    Namespace: "dbsync",
    Subsystem: "server",
    Name: "messages_dispatched_total",
    Help: "Number of inbound messages dispatched, by message type",
}, []string{ "type" })

var prometheusViolationsCounter = prometheus.NewCounter(prometheus.CounterOpts{
    Namespace: "dbsync",
    Subsystem: "server",
    Name: "protocol_violations_total",
    Help: "Number of connections terminated because of a protocol violation",
})

func init() {
    prometheus.MustRegister(prometheusConnectionsGauge)
    prometheus.MustRegister(prometheusMessagesCounter)
    prometheus.MustRegister(prometheusViolationsCounter)
}

func prometheusRecordMessage(messageType int) {
    prometheusMessagesCounter.With(prometheus.Labels{ "type": MessageTypeName(messageType) }).Inc()
}
