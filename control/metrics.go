// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for the reactor core. Every recorder is nil-safe so
// components can run without metrics in tests.

package control

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "hioload"

// Metrics groups the collectors of one server instance.
type Metrics struct {
	connectionsAccepted prometheus.Counter
	acceptErrors        prometheus.Counter
	connectionsOpen     prometheus.Gauge
	connectionsClosed   prometheus.Counter
	bytesRead           prometheus.Counter
	bytesWritten        prometheus.Counter
	ioErrors            *prometheus.CounterVec
	changeTasks         *prometheus.CounterVec
	wakeups             *prometheus.CounterVec
	selectedKeys        *prometheus.CounterVec
	registrations       *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		connectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "connections_accepted_total",
			Help:      "Count of connections accepted from the listening socket.",
		}),
		acceptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "accept_errors_total",
			Help:      "Count of accept failures that terminated an acceptor.",
		}),
		connectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "connections_open",
			Help:      "Number of endpoints currently open.",
		}),
		connectionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "connections_closed_total",
			Help:      "Count of endpoints closed.",
		}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "read_bytes_total",
			Help:      "Bytes read from connections.",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "written_bytes_total",
			Help:      "Bytes written to connections.",
		}),
		ioErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "io_errors_total",
			Help:      "Count of I/O errors by operation.",
		}, []string{"op"}),
		changeTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "reactor_change_tasks_total",
			Help:      "Count of change tasks run on each reactor thread.",
		}, []string{"reactor"}),
		wakeups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "reactor_wakeups_total",
			Help:      "Count of cross-thread wakeups of each reactor.",
		}, []string{"reactor"}),
		selectedKeys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "reactor_selected_keys_total",
			Help:      "Count of ready keys dispatched by each reactor.",
		}, []string{"reactor"}),
		registrations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "reactor_registrations",
			Help:      "Number of connections registered with each reactor.",
		}, []string{"reactor"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.connectionsAccepted, m.acceptErrors, m.connectionsOpen, m.connectionsClosed,
		m.bytesRead, m.bytesWritten, m.ioErrors, m.changeTasks, m.wakeups,
		m.selectedKeys, m.registrations,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) RecordAccepted() {
	if m != nil {
		m.connectionsAccepted.Inc()
	}
}

func (m *Metrics) RecordAcceptError() {
	if m != nil {
		m.acceptErrors.Inc()
	}
}

// RecordOpened and RecordClosed track the open-connections gauge.
func (m *Metrics) RecordOpened() {
	if m != nil {
		m.connectionsOpen.Inc()
	}
}

func (m *Metrics) RecordClosed() {
	if m != nil {
		m.connectionsOpen.Dec()
		m.connectionsClosed.Inc()
	}
}

func (m *Metrics) RecordRead(n int) {
	if m != nil && n > 0 {
		m.bytesRead.Add(float64(n))
	}
}

func (m *Metrics) RecordWritten(n int) {
	if m != nil && n > 0 {
		m.bytesWritten.Add(float64(n))
	}
}

// RecordIOError counts a failed operation ("read", "write", "close", "register").
func (m *Metrics) RecordIOError(op string) {
	if m != nil {
		m.ioErrors.WithLabelValues(op).Inc()
	}
}

// ForReactor returns collectors curried with the reactor label.
func (m *Metrics) ForReactor(id int) *ReactorMetrics {
	if m == nil {
		return nil
	}
	label := strconv.Itoa(id)
	return &ReactorMetrics{
		changeTasks:   m.changeTasks.WithLabelValues(label),
		wakeups:       m.wakeups.WithLabelValues(label),
		selectedKeys:  m.selectedKeys.WithLabelValues(label),
		registrations: m.registrations.WithLabelValues(label),
	}
}

// ReactorMetrics are the per-reactor collectors.
type ReactorMetrics struct {
	changeTasks   prometheus.Counter
	wakeups       prometheus.Counter
	selectedKeys  prometheus.Counter
	registrations prometheus.Gauge
}

func (rm *ReactorMetrics) RecordChangeTask() {
	if rm != nil {
		rm.changeTasks.Inc()
	}
}

func (rm *ReactorMetrics) RecordWakeup() {
	if rm != nil {
		rm.wakeups.Inc()
	}
}

func (rm *ReactorMetrics) RecordSelected(n int) {
	if rm != nil && n > 0 {
		rm.selectedKeys.Add(float64(n))
	}
}

func (rm *ReactorMetrics) RecordRegistered() {
	if rm != nil {
		rm.registrations.Inc()
	}
}

func (rm *ReactorMetrics) RecordDeregistered() {
	if rm != nil {
		rm.registrations.Dec()
	}
}
