// File: internal/orchestrator/orchestrator.go
// Description: Runs a batch of case identifiers through one authenticated
// session. It is injected with the gate and form machine via interfaces so it
// can be driven by fakes in tests.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/emedauto/internal/automation"
	"github.com/xkilldash9x/emedauto/internal/casework"
	"github.com/xkilldash9x/emedauto/internal/report"
)

// Status lines emitted over the course of a run.
const (
	StatusNoRecords    = "No eMedical No. read."
	StatusLoggingIn    = "Logging in..."
	StatusLoginFailed  = "Login failed, please check your credentials"
	StatusStopped      = "Processing stopped by user"
	StatusComplete     = "Processing complete!"
	statusAbortPrefix  = "Run aborted: "
	statusProcessingAt = "Processing: "
)

// Authenticator opens an authenticated session. Implemented by automation.Gate.
type Authenticator interface {
	Authenticate(ctx context.Context, creds automation.Credentials, headless bool, maxAttempts int) (*automation.Session, error)
}

// Processor drives a single record. Implemented by automation.Machine.
type Processor interface {
	Process(ctx context.Context, session *automation.Session, rec casework.Record, profile casework.CountryProfile) (casework.Status, error)
}

// RunOptions are the per-run choices made by the operator.
type RunOptions struct {
	Headless         bool
	ClosePolicy      ClosePolicy
	MaxLoginAttempts int
}

// Orchestrator manages the lifecycle of a batch run. Runs must not overlap.
type Orchestrator struct {
	gate     Authenticator
	machine  Processor
	reporter report.Reporter
	logger   *zap.Logger

	mu       sync.Mutex
	retained []*automation.Session
}

// New creates an Orchestrator. A nil reporter is replaced by report.Nop.
func New(gate Authenticator, machine Processor, reporter report.Reporter, logger *zap.Logger) (*Orchestrator, error) {
	if gate == nil || machine == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	if reporter == nil {
		reporter = report.Nop{}
	}
	return &Orchestrator{
		gate:     gate,
		machine:  machine,
		reporter: reporter,
		logger:   logger.Named("orchestrator"),
	}, nil
}

// Run processes ids strictly in order over one session.
//
// stop is checked before each record is dispatched; a stopped token lets the
// current record finish and leaves the rest Pending. Cancelling ctx is a hard
// abort that surfaces as a fatal error. The returned RunState is never nil,
// and is partial whenever err is non-nil.
func (o *Orchestrator) Run(ctx context.Context, ids []string, creds automation.Credentials, opts RunOptions, stop *StopToken) (*casework.RunState, error) {
	rs := casework.NewRunState(uuid.NewString(), ids)
	rs.StartedAt = time.Now()
	log := o.logger.With(zap.String("run_id", rs.RunID))

	o.reporter.Report(report.Records{IDs: append([]string(nil), ids...)})
	o.reportCounts(rs)

	if len(ids) == 0 {
		o.status(StatusNoRecords)
		return o.finish(log, rs), nil
	}

	o.status(StatusLoggingIn)
	session, err := o.gate.Authenticate(ctx, creds, opts.Headless, opts.MaxLoginAttempts)
	if err != nil {
		rs.Aborted = true
		log.Error("Authentication failed, no records processed", zap.Error(err))
		o.status(StatusLoginFailed)
		return o.finish(log, rs), err
	}

	runErr := o.processAll(ctx, log, session, rs, stop)
	if runErr != nil {
		rs.Aborted = true
		log.Error("Run aborted", zap.String("kind", automation.Kind(runErr)), zap.Error(runErr))
		o.closeSession(log, session)
		o.status(statusAbortPrefix + runErr.Error())
		return o.finish(log, rs), runErr
	}

	o.reportCounts(rs)
	o.status(StatusComplete)

	if opts.ClosePolicy.ShouldClose(opts.Headless) {
		o.closeSession(log, session)
	} else {
		log.Info("Leaving browser open", zap.String("session_id", session.ID()))
		o.mu.Lock()
		o.retained = append(o.retained, session)
		o.mu.Unlock()
	}
	return o.finish(log, rs), nil
}

func (o *Orchestrator) processAll(ctx context.Context, log *zap.Logger, session *automation.Session, rs *casework.RunState, stop *StopToken) error {
	for i := range rs.Records {
		if stop.Stopped() {
			rs.Cancelled = true
			log.Info("Stop requested, leaving remaining records pending", zap.Int("pending", len(rs.Records)-i))
			o.status(StatusStopped)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return automation.Fault(err)
		}

		if err := rs.Start(i); err != nil {
			return err
		}
		rec := rs.Records[i]
		o.reporter.Report(report.RecordStart{ID: rec.ID, Index: i})
		o.status(statusProcessingAt + rec.ID)

		outcome, fatal := o.processOne(ctx, log, session, rec)
		if err := rs.Finish(i, outcome); err != nil {
			return err
		}
		o.reporter.Report(report.RecordEnd{ID: rec.ID, Index: i, Outcome: outcome})
		o.reportCounts(rs)

		if fatal != nil {
			return fatal
		}
	}
	return nil
}

func (o *Orchestrator) processOne(ctx context.Context, log *zap.Logger, session *automation.Session, rec casework.Record) (casework.Status, error) {
	profile, ok := casework.ProfileFor(rec.Country)
	if !ok {
		log.Warn("Unknown eMedical No. prefix, skipping", zap.String("record", rec.ID))
		return casework.StatusSkippedUnknown, nil
	}
	return o.machine.Process(ctx, session, rec, profile)
}

// closeSession closes a session even when the run context is already gone.
func (o *Orchestrator) closeSession(log *zap.Logger, session *automation.Session) {
	if err := session.Close(context.Background()); err != nil {
		log.Warn("Failed to close browser", zap.Error(err))
	}
}

func (o *Orchestrator) finish(log *zap.Logger, rs *casework.RunState) *casework.RunState {
	rs.FinishedAt = time.Now()
	log.Info("Run summary",
		zap.Int("total", rs.Total),
		zap.Int("succeeded", len(rs.Succeeded)),
		zap.Int("failed", len(rs.Failed)),
		zap.Int("pending", rs.Pending()),
		zap.Bool("cancelled", rs.Cancelled),
		zap.Bool("aborted", rs.Aborted),
		zap.Duration("duration", rs.FinishedAt.Sub(rs.StartedAt)),
	)
	return rs
}

func (o *Orchestrator) status(msg string) {
	o.reporter.Report(report.Status{Message: msg})
}

func (o *Orchestrator) reportCounts(rs *casework.RunState) {
	o.reporter.Report(report.Counts{Succeeded: len(rs.Succeeded), Failed: len(rs.Failed)})
}

// Retained returns how many sessions were left open by earlier runs.
func (o *Orchestrator) Retained() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.retained)
}

// Shutdown closes every session that a close policy left open.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	sessions := o.retained
	o.retained = nil
	o.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", s.ID(), err))
		}
	}
	return errors.Join(errs...)
}
