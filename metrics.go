package safedbx

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// envMetrics is the per-environment metrics set.
type envMetrics struct {
	set *metrics.Set

	beginRead, beginWrite   *metrics.Counter
	commitRead, commitWrite *metrics.Counter
	abortRead, abortWrite   *metrics.Counter
	commitErrors            *metrics.Counter
	dbiOpen, dbiCreate      *metrics.Counter

	lockWait *metrics.Histogram
}

func newEnvMetrics(e *Env) *envMetrics {
	s := metrics.NewSet()
	m := &envMetrics{
		set:          s,
		beginRead:    s.NewCounter(`safedbx_txn_begin_total{mode="read"}`),
		beginWrite:   s.NewCounter(`safedbx_txn_begin_total{mode="write"}`),
		commitRead:   s.NewCounter(`safedbx_txn_commit_total{mode="read"}`),
		commitWrite:  s.NewCounter(`safedbx_txn_commit_total{mode="write"}`),
		abortRead:    s.NewCounter(`safedbx_txn_abort_total{mode="read"}`),
		abortWrite:   s.NewCounter(`safedbx_txn_abort_total{mode="write"}`),
		commitErrors: s.NewCounter(`safedbx_txn_commit_errors_total`),
		dbiOpen:      s.NewCounter(`safedbx_dbi_open_total`),
		dbiCreate:    s.NewCounter(`safedbx_dbi_create_total`),
		lockWait:     s.NewHistogram(`safedbx_write_lock_wait_seconds`),
	}
	s.NewGauge(`safedbx_readers_active`, func() float64 {
		return float64(e.readers.Value())
	})
	s.NewGauge(`safedbx_handles_open`, func() float64 {
		return float64(e.dbis.Size())
	})
	return m
}

func (m *envMetrics) begun(readOnly bool) *metrics.Counter {
	if readOnly {
		return m.beginRead
	}
	return m.beginWrite
}

func (m *envMetrics) committed(readOnly bool) *metrics.Counter {
	if readOnly {
		return m.commitRead
	}
	return m.commitWrite
}

func (m *envMetrics) aborted(readOnly bool) *metrics.Counter {
	if readOnly {
		return m.abortRead
	}
	return m.abortWrite
}

// WriteMetrics writes the environment's metrics in Prometheus text format.
func (e *Env) WriteMetrics(w io.Writer) {
	e.metrics.set.WritePrometheus(w)
}
