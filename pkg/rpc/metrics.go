/*
Copyright 2017 The Nuclio Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package rpc

import (
	"github.com/nuclio/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// worldMetrics instruments a world's call and message traffic. A nil
// receiver is a no-op, so worlds without metrics pay nothing.
type worldMetrics struct {
	callsTotal        prometheus.Counter
	callFailuresTotal prometheus.Counter
	messagesTotal     *prometheus.CounterVec
	pendingCalls      prometheus.Gauge
}

// WithMetrics registers call and message metrics for the world with the
// given registerer, labelled by instance name
func WithMetrics(registerer prometheus.Registerer, instanceName string) WorldOption {
	return func(world *World) error {
		metrics, err := newWorldMetrics(registerer, instanceName)
		if err != nil {
			return errors.Wrap(err, "Can't create world metrics")
		}

		world.metrics = metrics

		return nil
	}
}

func newWorldMetrics(registerer prometheus.Registerer, instanceName string) (*worldMetrics, error) {
	constLabels := prometheus.Labels{"instance": instanceName}

	metrics := &worldMetrics{
		callsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "rpc_calls_total",
			Help:        "Total outbound calls dispatched",
			ConstLabels: constLabels,
		}),
		callFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "rpc_call_failures_total",
			Help:        "Total outbound calls that settled with an error",
			ConstLabels: constLabels,
		}),
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "rpc_messages_total",
			Help:        "Total inbound messages by type",
			ConstLabels: constLabels,
		}, []string{"type"}),
		pendingCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "rpc_pending_calls",
			Help:        "Calls awaiting a response",
			ConstLabels: constLabels,
		}),
	}

	for _, collector := range []prometheus.Collector{
		metrics.callsTotal,
		metrics.callFailuresTotal,
		metrics.messagesTotal,
		metrics.pendingCalls,
	} {
		if err := registerer.Register(collector); err != nil {
			return nil, errors.Wrap(err, "Can't register collector")
		}
	}

	return metrics, nil
}

// callStarted counts a dispatched call and tracks its settlement. Disposal
// abandons in-flight futures without settling them, so the tracking
// goroutine is bounded by the world's disposed channel - it must not
// outlive the world.
func (m *worldMetrics) callStarted(future *Future, disposed <-chan struct{}) {
	if m == nil {
		return
	}

	m.callsTotal.Inc()
	m.pendingCalls.Inc()

	go func() {
		select {
		case <-future.Done():
			m.pendingCalls.Dec()

			if _, err, _ := future.Result(); err != nil {
				m.callFailuresTotal.Inc()
			}

		case <-disposed:

			// the call was abandoned, not failed
			m.pendingCalls.Dec()
		}
	}()
}

func (m *worldMetrics) messageReceived(messageType string) {
	if m == nil {
		return
	}

	m.messagesTotal.WithLabelValues(messageType).Inc()
}
