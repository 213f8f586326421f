package index

import (
	"log/slog"
	"time"
)

// Op names a lifecycle operation reported to an EventSink.
type Op string

// Lifecycle operations.
const (
	OpInsert  Op = "insert"
	OpUpdate  Op = "update"
	OpRemove  Op = "remove"
	OpQuery   Op = "query"
	OpNearest Op = "nearest"
	OpRaycast Op = "raycast"
	OpRebuild Op = "rebuild"
	OpSwitch  Op = "switch"
)

// IsQuery reports whether op is a read operation tracked in QueryStats.
func (op Op) IsQuery() bool {
	return op == OpQuery || op == OpNearest || op == OpRaycast
}

// Event is a structured record of one index operation.
type Event struct {
	IndexType   Type
	Op          Op
	ItemID      string
	Duration    time.Duration
	ResultCount int
	Time        time.Time
}

// EventSink receives lifecycle events. It is called synchronously on the
// goroutine performing the operation.
type EventSink func(Event)

// Clock returns the current time. Indexes take one so tests can control
// time-dependent behavior.
type Clock func() time.Time

// QueryStats summarizes the read operations served by an index.
type QueryStats struct {
	TotalQueries   int64
	AvgQueryTime   time.Duration
	AvgResultCount float64
}

// Recorder times operations, accumulates QueryStats and forwards events to an
// optional sink. The zero value is not usable; use NewRecorder.
type Recorder struct {
	typ  Type
	sink EventSink
	now  Clock

	queries      int64
	totalTime    time.Duration
	totalResults int64
}

// NewRecorder creates a Recorder for an index of type t. A nil clock uses time.Now.
func NewRecorder(t Type, sink EventSink, now Clock) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{typ: t, sink: sink, now: now}
}

// Now returns the recorder's current time.
func (r *Recorder) Now() time.Time {
	return r.now()
}

// Done finishes an operation that started at start.
func (r *Recorder) Done(op Op, id string, start time.Time, results int) {
	end := r.now()
	d := end.Sub(start)

	if op.IsQuery() {
		r.queries++
		r.totalTime += d
		r.totalResults += int64(results)
	}

	if r.sink != nil {
		r.sink(Event{
			IndexType:   r.typ,
			Op:          op,
			ItemID:      id,
			Duration:    d,
			ResultCount: results,
			Time:        end,
		})
	}
}

// Stats returns the accumulated query statistics.
func (r *Recorder) Stats() QueryStats {
	if r.queries == 0 {
		return QueryStats{}
	}
	return QueryStats{
		TotalQueries:   r.queries,
		AvgQueryTime:   r.totalTime / time.Duration(r.queries),
		AvgResultCount: float64(r.totalResults) / float64(r.queries),
	}
}

// Reset clears the accumulated query statistics.
func (r *Recorder) Reset() {
	r.queries = 0
	r.totalTime = 0
	r.totalResults = 0
}

// LoggerOrDiscard returns l, or a logger that drops every record when l is nil.
func LoggerOrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}
