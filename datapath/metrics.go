/*
 * MIT License
 *
 * Copyright (c) 2025 quicdatapath contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package datapath

import "github.com/prometheus/client_golang/prometheus"

// metricSet is an unregistered Prometheus collector set: callers decide
// whether and where to register it (a library must never reach into a
// global registry on its own). Named to mirror the kind of at-a-glance
// operational counters the QUIC stack's own tracing layer would expose,
// but kept out of this package's scope per spec §1 ("tracing/logging ...
// treated as provided utilities").
type metricSet struct {
	DatagramsReceived prometheus.Counter
	DatagramsSent     prometheus.Counter
	SendDeferred      prometheus.Counter
	ReceiveErrors     prometheus.Counter
	BindingsActive    prometheus.Gauge
}

func newMetricSet() *metricSet {
	return &metricSet{
		DatagramsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quicdatapath",
			Name:      "datagrams_received_total",
			Help:      "UDP datagrams delivered to the receive callback.",
		}),
		DatagramsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quicdatapath",
			Name:      "datagrams_sent_total",
			Help:      "UDP datagrams successfully handed to the kernel.",
		}),
		SendDeferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quicdatapath",
			Name:      "sends_deferred_total",
			Help:      "Send contexts parked on a pending FIFO after EWOULDBLOCK.",
		}),
		ReceiveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quicdatapath",
			Name:      "receive_errors_total",
			Help:      "recvmsg calls that failed with something other than EAGAIN/EINTR.",
		}),
		BindingsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quicdatapath",
			Name:      "bindings_active",
			Help:      "Bindings created and not yet deleted.",
		}),
	}
}

// Collectors returns the datapath's metrics so the embedder can register
// them with whatever prometheus.Registerer it already owns.
func (d *Datapath) Collectors() []prometheus.Collector {
	return d.metrics.Collectors()
}

// Collectors returns every metric so the embedder can register them
// with whatever prometheus.Registerer it already owns.
func (m *metricSet) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.DatagramsReceived,
		m.DatagramsSent,
		m.SendDeferred,
		m.ReceiveErrors,
		m.BindingsActive,
	}
}
