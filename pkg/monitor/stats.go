package monitor

import (
	"errors"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Scan modes reported by RecordQuery.
const (
	ScanBucket = "bucket"
	ScanFull   = "full"
	ScanEmpty  = "empty"
)

// IndexStats counts index workload. Counters are plain atomics so Snapshot
// is cheap; every update is mirrored into Prometheus collectors. All methods
// are safe on a nil receiver.
type IndexStats struct {
	name string

	Puts       atomic.Uint64
	FastPuts   atomic.Uint64
	Removes    atomic.Uint64
	Queries    atomic.Uint64
	BucketScan atomic.Uint64
	FullScan   atomic.Uint64
	EmptyPlan  atomic.Uint64
	Candidates atomic.Uint64
	Emitted    atomic.Uint64

	metrics *indexMetrics
}

type indexMetrics struct {
	ops        *prometheus.CounterVec
	scans      *prometheus.CounterVec
	candidates *prometheus.HistogramVec
}

// NewIndexStats creates stats for the index called name and registers its
// collectors on reg. A nil reg uses a private registry. Indexes sharing a
// registry share collectors and are told apart by the "index" label.
func NewIndexStats(name string, reg prometheus.Registerer) (*IndexStats, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m, err := newIndexMetrics(reg)
	if err != nil {
		return nil, err
	}
	return &IndexStats{name: name, metrics: m}, nil
}

func newIndexMetrics(reg prometheus.Registerer) (*indexMetrics, error) {
	m := &indexMetrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spatialdb_index_ops_total",
			Help: "Index mutations by operation",
		}, []string{"index", "op"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spatialdb_index_scans_total",
			Help: "Queries by scan mode",
		}, []string{"index", "mode"}),
		candidates: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spatialdb_index_query_candidates",
			Help:    "Candidates examined per query",
			Buckets: []float64{0, 1, 4, 16, 64, 256, 1024, 4096, 16384},
		}, []string{"index"}),
	}

	var err error
	if m.ops, err = register(reg, m.ops); err != nil {
		return nil, err
	}
	if m.scans, err = register(reg, m.scans); err != nil {
		return nil, err
	}
	if m.candidates, err = register(reg, m.candidates); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, or returns the equivalent collector already there.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (s *IndexStats) RecordPut(fast bool) {
	if s == nil {
		return
	}
	s.Puts.Add(1)
	op := "put"
	if fast {
		s.FastPuts.Add(1)
		op = "put_fast"
	}
	s.metrics.ops.WithLabelValues(s.name, op).Inc()
}

func (s *IndexStats) RecordRemove() {
	if s == nil {
		return
	}
	s.Removes.Add(1)
	s.metrics.ops.WithLabelValues(s.name, "remove").Inc()
}

// RecordQuery records one select: its scan mode, how many entities were
// examined and how many reached the sink.
func (s *IndexStats) RecordQuery(mode string, candidates, emitted int) {
	if s == nil {
		return
	}
	s.Queries.Add(1)
	switch mode {
	case ScanBucket:
		s.BucketScan.Add(1)
	case ScanFull:
		s.FullScan.Add(1)
	case ScanEmpty:
		s.EmptyPlan.Add(1)
	}
	s.Candidates.Add(uint64(candidates))
	s.Emitted.Add(uint64(emitted))
	s.metrics.scans.WithLabelValues(s.name, mode).Inc()
	s.metrics.candidates.WithLabelValues(s.name).Observe(float64(candidates))
}

// Selectivity is emitted/candidates over all queries: 1 means the bucket
// scan examined nothing it did not return.
func (s *IndexStats) Selectivity() float64 {
	if s == nil {
		return 0
	}
	c := s.Candidates.Load()
	if c == 0 {
		return 1.0
	}
	return float64(s.Emitted.Load()) / float64(c)
}

// ReadWriteRatio is queries per mutation.
func (s *IndexStats) ReadWriteRatio() float64 {
	if s == nil {
		return 0
	}
	reads := s.Queries.Load()
	writes := s.Puts.Load() + s.Removes.Load()
	if writes == 0 {
		if reads > 0 {
			return 100.0
		}
		return 0.0
	}
	return float64(reads) / float64(writes)
}

func (s *IndexStats) Snapshot() map[string]interface{} {
	if s == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}{
		"index":       s.name,
		"puts":        s.Puts.Load(),
		"fast_puts":   s.FastPuts.Load(),
		"removes":     s.Removes.Load(),
		"queries":     s.Queries.Load(),
		"bucket_scan": s.BucketScan.Load(),
		"full_scan":   s.FullScan.Load(),
		"empty_plan":  s.EmptyPlan.Load(),
		"candidates":  s.Candidates.Load(),
		"emitted":     s.Emitted.Load(),
		"selectivity": s.Selectivity(),
		"rw_ratio":    s.ReadWriteRatio(),
	}
}
