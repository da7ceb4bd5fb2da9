// File: internal/casework/record.go
package casework

import (
	"fmt"
	"strings"
	"time"
)

// Status is the processing state of a single record.
type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusSuccess
	StatusFailed
	StatusSkippedUnknown
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusSkippedUnknown:
		return "skipped_unknown"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusSkippedUnknown
}

// Record is one case identifier read from the record source.
type Record struct {
	ID      string
	Country Country
	Status  Status
}

// NewRecord creates a pending record and classifies its country. Surrounding
// whitespace is dropped from id.
func NewRecord(id string) Record {
	id = strings.TrimSpace(id)
	return Record{ID: id, Country: Classify(id), Status: StatusPending}
}

// Transition moves the record to next, rejecting anything other than
// Pending -> InProgress -> terminal.
func (r *Record) Transition(next Status) error {
	switch {
	case r.Status == StatusPending && next == StatusInProgress:
	case r.Status == StatusInProgress && next.Terminal():
	default:
		return fmt.Errorf("record %s: illegal transition %s -> %s", r.ID, r.Status, next)
	}
	r.Status = next
	return nil
}

// RunState holds the outcome of one batch run.
type RunState struct {
	RunID      string
	Total      int
	Succeeded  []string
	Failed     []string
	Cancelled  bool
	Aborted    bool
	Records    []Record
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRunState returns a fresh state with every identifier pending.
func NewRunState(runID string, ids []string) *RunState {
	rs := &RunState{
		RunID:     runID,
		Total:     len(ids),
		Succeeded: []string{},
		Failed:    []string{},
		Records:   make([]Record, 0, len(ids)),
	}
	for _, id := range ids {
		rs.Records = append(rs.Records, NewRecord(id))
	}
	return rs
}

// Start moves the record at index to InProgress.
func (rs *RunState) Start(index int) error {
	return rs.Records[index].Transition(StatusInProgress)
}

// Finish records a terminal status for the record at index and appends it to
// the matching result list.
func (rs *RunState) Finish(index int, status Status) error {
	rec := &rs.Records[index]
	if err := rec.Transition(status); err != nil {
		return err
	}
	if status == StatusSuccess {
		rs.Succeeded = append(rs.Succeeded, rec.ID)
	} else {
		rs.Failed = append(rs.Failed, rec.ID)
	}
	return nil
}

// Pending returns the number of records that never left Pending.
func (rs *RunState) Pending() int {
	n := 0
	for _, r := range rs.Records {
		if r.Status == StatusPending {
			n++
		}
	}
	return n
}

// Summary is the serializable end-of-run report.
type Summary struct {
	RunID     string        `json:"run_id"`
	Total     int           `json:"total"`
	Succeeded []string      `json:"succeeded"`
	Failed    []string      `json:"failed"`
	Pending   int           `json:"pending"`
	Cancelled bool          `json:"cancelled"`
	Aborted   bool          `json:"aborted"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// Summary builds the end-of-run report.
func (rs *RunState) Summary() Summary {
	var d time.Duration
	if !rs.FinishedAt.IsZero() {
		d = rs.FinishedAt.Sub(rs.StartedAt)
	}
	return Summary{
		RunID:     rs.RunID,
		Total:     rs.Total,
		Succeeded: append([]string{}, rs.Succeeded...),
		Failed:    append([]string{}, rs.Failed...),
		Pending:   rs.Pending(),
		Cancelled: rs.Cancelled,
		Aborted:   rs.Aborted,
		StartedAt: rs.StartedAt,
		Duration:  d,
	}
}
