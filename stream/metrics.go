// Package stream drives the bidirectional command stream against the trace
// service.
/*
 * Copyright (c) 2024-2026, NVIDIA CORPORATION. All rights reserved.
 */
package stream

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	sentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "replay",
		Subsystem: "stream",
		Name:      "sent_total",
		Help:      "Outgoing stream requests.",
	})
	receivedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "replay",
		Subsystem: "stream",
		Name:      "received_total",
		Help:      "Incoming stream messages.",
	})
	resolvesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "replay",
		Subsystem: "stream",
		Name:      "resolves_total",
		Help:      "Remote pointer dereferences.",
	})
)

// RegisterMetrics registers the stream counters with reg; re-registration
// is tolerated.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{sentTotal, receivedTotal, resolvesTotal} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
