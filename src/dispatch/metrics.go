// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dispatch

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors updated by the dispatcher and the
// DoH handler. A nil *Metrics records nothing.
type Metrics struct {
	Calls    *prometheus.CounterVec
	Retries  prometheus.Counter
	Blocked  *prometheus.CounterVec
	Switches prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "altroute",
			Subsystem: "dispatch",
			Name:      "calls_total",
			Help:      "Dispatched calls by final outcome.",
		}, []string{"outcome"}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "altroute",
			Subsystem: "dispatch",
			Name:      "retries_total",
			Help:      "Backoff retries performed.",
		}),
		Blocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "altroute",
			Subsystem: "dispatch",
			Name:      "blocked_total",
			Help:      "Potential blocking results by backend kind.",
		}, []string{"backend"}),
		Switches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "altroute",
			Subsystem: "doh",
			Name:      "alternative_switches_total",
			Help:      "Times an alternative backend was adopted.",
		}),
	}
	for _, c := range []prometheus.Collector{m.Calls, m.Retries, m.Blocked, m.Switches} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeCall(err Error) {
	if m == nil {
		return
	}
	m.Calls.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) observeRetry() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}

func (m *Metrics) observeBlocked(primary bool) {
	if m == nil {
		return
	}
	kind := "alternative"
	if primary {
		kind = "primary"
	}
	m.Blocked.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeSwitch() {
	if m == nil {
		return
	}
	m.Switches.Inc()
}

// outcome maps an error to a low cardinality label value.
func outcome(err Error) string {
	switch e := err.(type) {
	case nil:
		return "success"
	case *TooManyRequestsError:
		return "too_many_requests"
	case *HTTPError:
		return "http"
	case *ParseError:
		return "parse"
	case *ConnectionError:
		return e.Kind.String()
	default:
		return "unknown"
	}
}
