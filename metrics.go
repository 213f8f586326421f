package spatialgo

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/spatialgo/index"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; see
// observability.PrometheusCollector for a Prometheus implementation.
type MetricsCollector interface {
	// RecordInsert is called after each insert operation.
	// err is nil if successful.
	RecordInsert(duration time.Duration, err error)

	// RecordUpdate is called after each update. found is false for unknown IDs.
	RecordUpdate(duration time.Duration, found bool)

	// RecordRemove is called after each remove. found is false for unknown IDs.
	RecordRemove(duration time.Duration, found bool)

	// RecordQuery is called after each read operation: op is one of
	// index.OpQuery, index.OpNearest or index.OpRaycast.
	RecordQuery(op index.Op, results int, duration time.Duration)

	// RecordRebuild is called after the active index is repopulated.
	RecordRebuild(t index.Type, items int, duration time.Duration)

	// RecordSwitch is called after the active index type changes.
	RecordSwitch(from, to index.Type)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)            {}
func (NoopMetricsCollector) RecordUpdate(time.Duration, bool)             {}
func (NoopMetricsCollector) RecordRemove(time.Duration, bool)             {}
func (NoopMetricsCollector) RecordQuery(index.Op, int, time.Duration)     {}
func (NoopMetricsCollector) RecordRebuild(index.Type, int, time.Duration) {}
func (NoopMetricsCollector) RecordSwitch(index.Type, index.Type)          {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InsertCount      atomic.Int64
	InsertErrors     atomic.Int64
	InsertTotalNanos atomic.Int64
	UpdateCount      atomic.Int64
	UpdateMisses     atomic.Int64
	RemoveCount      atomic.Int64
	RemoveMisses     atomic.Int64
	QueryCount       atomic.Int64
	QueryResults     atomic.Int64
	QueryTotalNanos  atomic.Int64
	NearestCount     atomic.Int64
	RaycastCount     atomic.Int64
	RebuildCount     atomic.Int64
	SwitchCount      atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordUpdate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpdate(_ time.Duration, found bool) {
	b.UpdateCount.Add(1)
	if !found {
		b.UpdateMisses.Add(1)
	}
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(_ time.Duration, found bool) {
	b.RemoveCount.Add(1)
	if !found {
		b.RemoveMisses.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(op index.Op, results int, duration time.Duration) {
	b.QueryCount.Add(1)
	b.QueryResults.Add(int64(results))
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	switch op {
	case index.OpNearest:
		b.NearestCount.Add(1)
	case index.OpRaycast:
		b.RaycastCount.Add(1)
	}
}

// RecordRebuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRebuild(index.Type, int, time.Duration) {
	b.RebuildCount.Add(1)
}

// RecordSwitch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSwitch(index.Type, index.Type) {
	b.SwitchCount.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:    b.InsertCount.Load(),
		InsertErrors:   b.InsertErrors.Load(),
		InsertAvgNanos: avg(b.InsertTotalNanos.Load(), b.InsertCount.Load()),
		UpdateCount:    b.UpdateCount.Load(),
		UpdateMisses:   b.UpdateMisses.Load(),
		RemoveCount:    b.RemoveCount.Load(),
		RemoveMisses:   b.RemoveMisses.Load(),
		QueryCount:     b.QueryCount.Load(),
		QueryAvgNanos:  avg(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
		QueryResults:   b.QueryResults.Load(),
		NearestCount:   b.NearestCount.Load(),
		RaycastCount:   b.RaycastCount.Load(),
		RebuildCount:   b.RebuildCount.Load(),
		SwitchCount:    b.SwitchCount.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount    int64
	InsertErrors   int64
	InsertAvgNanos int64
	UpdateCount    int64
	UpdateMisses   int64
	RemoveCount    int64
	RemoveMisses   int64
	QueryCount     int64
	QueryAvgNanos  int64
	QueryResults   int64
	NearestCount   int64
	RaycastCount   int64
	RebuildCount   int64
	SwitchCount    int64
}
