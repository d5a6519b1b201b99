// Package metrics provides lock-free counters for authcore observability.
//
// Counters live in cache-line-padded slots and are incremented atomically;
// the write path is allocation-free. Export (OTel) lives in metrics/export/
// and reads Snapshot values.
package metrics

import "sync/atomic"

// MetricID identifies a single counter.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricLogout
	MetricLogoutAll
	MetricSessionCreated
	MetricSessionInvalidated
	MetricPasswordResetRequest
	MetricPasswordResetConfirmSuccess
	MetricPasswordResetConfirmFailure
	MetricEmailVerificationRequest
	MetricEmailVerificationSuccess
	MetricEmailVerificationFailure
	MetricPasswordChangeSuccess
	MetricPasswordChangeFailure
	MetricSweepDeleted

	MetricIDCount
)

type paddedCounter struct {
	value atomic.Uint64
	_     [56]byte
}

// Config controls metric collection.
type Config struct {
	Enabled bool
}

// Metrics holds the counter set. When disabled, all operations are no-ops.
type Metrics struct {
	enabled  bool
	counters [MetricIDCount]paddedCounter
}

func New(cfg Config) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

func (m *Metrics) Add(id MetricID, delta uint64) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	m.counters[id].value.Add(delta)
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Counters [MetricIDCount]uint64
}

func (m *Metrics) Snapshot() Snapshot {
	var snap Snapshot
	if m == nil || !m.enabled {
		return snap
	}
	for i := range m.counters {
		snap.Counters[i] = m.counters[i].value.Load()
	}
	return snap
}
