// Package report carries run progress from the orchestrator to whatever is
// presenting it: the console, the log file or a test.
package report

import (
	"github.com/xkilldash9x/emedauto/internal/casework"
)

// Event is one progress notification. The concrete types are Status,
// Records, RecordStart, RecordEnd and Counts.
type Event interface {
	event()
}

// Status is a human readable run status line.
type Status struct {
	Message string
}

// Records lists the identifiers of a run, in processing order.
type Records struct {
	IDs []string
}

// RecordStart is emitted before a record is dispatched.
type RecordStart struct {
	ID    string
	Index int
}

// RecordEnd is emitted once a record reaches a terminal status.
type RecordEnd struct {
	ID      string
	Index   int
	Outcome casework.Status
}

// Counts carries the running success and failure totals.
type Counts struct {
	Succeeded int
	Failed    int
}

func (Status) event()      {}
func (Records) event()     {}
func (RecordStart) event() {}
func (RecordEnd) event()   {}
func (Counts) event()      {}

// Reporter receives progress events. Report is called from the worker
// goroutine and must not block for long.
type Reporter interface {
	Report(Event)
}

// Callbacks adapts plain functions to a Reporter. Nil fields are skipped.
type Callbacks struct {
	OnStatus        func(message string)
	OnRecords       func(ids []string)
	OnRecordStart   func(id string, index int)
	OnRecordEnd     func(id string, index int, outcome casework.Status)
	OnCountsChanged func(succeeded, failed int)
}

// Report implements Reporter.
func (c Callbacks) Report(e Event) {
	switch ev := e.(type) {
	case Status:
		if c.OnStatus != nil {
			c.OnStatus(ev.Message)
		}
	case Records:
		if c.OnRecords != nil {
			c.OnRecords(ev.IDs)
		}
	case RecordStart:
		if c.OnRecordStart != nil {
			c.OnRecordStart(ev.ID, ev.Index)
		}
	case RecordEnd:
		if c.OnRecordEnd != nil {
			c.OnRecordEnd(ev.ID, ev.Index, ev.Outcome)
		}
	case Counts:
		if c.OnCountsChanged != nil {
			c.OnCountsChanged(ev.Succeeded, ev.Failed)
		}
	}
}

// Multi fans every event out to each reporter in order.
type Multi []Reporter

// Report implements Reporter.
func (m Multi) Report(e Event) {
	for _, r := range m {
		if r != nil {
			r.Report(e)
		}
	}
}

// Nop discards every event.
type Nop struct{}

// Report implements Reporter.
func (Nop) Report(Event) {}
