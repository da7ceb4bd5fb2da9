// File: internal/automation/machine.go
package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/emedauto/internal/casework"
)

// State is a position in the per-record form sequence.
type State int

const (
	StateIdle State = iota
	StateSearching
	StateCaseSelected
	StateCaseOpened
	StateExamNotPresent
	StateExamSection
	StateFindingsEntry
	StateSpecialFindings
	StateReview
	StateGradingOrDeclaration
	StateExaminerDeclaration
	StateSubmission
	StateClosed
	StateError
)

var stateNames = map[State]string{
	StateIdle:                 "Idle",
	StateSearching:            "Searching",
	StateCaseSelected:         "CaseSelected",
	StateCaseOpened:           "CaseOpened",
	StateExamNotPresent:       "ExamNotPresent",
	StateExamSection:          "ExamSection",
	StateFindingsEntry:        "FindingsEntry",
	StateSpecialFindings:      "SpecialFindings",
	StateReview:               "Review",
	StateGradingOrDeclaration: "GradingOrDeclaration",
	StateExaminerDeclaration:  "ExaminerDeclaration",
	StateSubmission:           "Submission",
	StateClosed:               "Closed",
	StateError:                "Error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further actions happen after s.
func (s State) Terminal() bool { return s == StateClosed || s == StateError }

// Transition is reported to the transition hook on every state change.
type Transition struct {
	Record string
	From   State
	To     State
}

// MachineConfig tunes waits inside the form sequence.
type MachineConfig struct {
	// StepTimeout bounds every wait-for-marker.
	StepTimeout time.Duration
	// SettleDelay is the pause after list and review pages render, before
	// their buttons accept clicks.
	SettleDelay time.Duration
}

// Machine drives one record through its country profile. A Machine holds no
// per-record state and may be reused across records.
type Machine struct {
	cfg    MachineConfig
	logger *zap.Logger
	onStep func(Transition)
	sleep  func(ctx context.Context, d time.Duration) error
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithTransitionHook registers fn to observe every state change.
func WithTransitionHook(fn func(Transition)) MachineOption {
	return func(m *Machine) { m.onStep = fn }
}

// WithSleeper replaces the settle delay implementation. Used by tests.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) MachineOption {
	return func(m *Machine) { m.sleep = fn }
}

// NewMachine creates a form state machine.
func NewMachine(cfg MachineConfig, logger *zap.Logger, opts ...MachineOption) *Machine {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 10 * time.Second
	}
	m := &Machine{
		cfg:    cfg,
		logger: logger.Named("machine"),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Process walks rec through profile's step sequence. The returned status is
// StatusSuccess or StatusFailed. A non-nil error is only returned for fatal
// faults, in which case the run must stop.
func (m *Machine) Process(ctx context.Context, session *Session, rec casework.Record, profile casework.CountryProfile) (casework.Status, error) {
	r := &recordRun{
		m:       m,
		s:       session.Surface(),
		rec:     rec,
		profile: profile,
		log: m.logger.With(
			zap.String("record", rec.ID),
			zap.String("country", string(profile.Country)),
		),
	}

	var failure error
	state := StateIdle
	// Each state is visited at most once on any path through a profile.
	budget := len(stateNames)
	for !state.Terminal() {
		next, err := r.step(ctx, state)
		if err != nil {
			failure = &StepError{Step: state, Err: err}
			next = StateError
		} else if budget--; budget <= 0 {
			failure = &StepError{Step: state, Err: fmt.Errorf("%w: transition budget exhausted", ErrStepTimeout)}
			next = StateError
		}
		r.log.Debug("Transition", zap.Stringer("from", state), zap.Stringer("to", next))
		if m.onStep != nil {
			m.onStep(Transition{Record: rec.ID, From: state, To: next})
		}
		state = next
	}

	if state == StateError {
		r.closeBestEffort(ctx)
		var stepErr *StepError
		errors.As(failure, &stepErr)
		fields := []zap.Field{
			zap.Stringer("step", stepErr.Step),
			zap.String("kind", Kind(failure)),
			zap.Error(failure),
		}
		if IsFatal(failure) {
			r.log.Error("Automation surface fault, aborting", fields...)
			return casework.StatusFailed, failure
		}
		r.log.Error("Automation failed", fields...)
		return casework.StatusFailed, nil
	}

	r.log.Info("Successfully processed")
	return casework.StatusSuccess, nil
}

// recordRun carries the per-record context through the step handlers.
type recordRun struct {
	m       *Machine
	s       Surface
	rec     casework.Record
	profile casework.CountryProfile
	log     *zap.Logger
}

func (r *recordRun) step(ctx context.Context, state State) (State, error) {
	switch state {
	case StateIdle:
		return StateSearching, nil
	case StateSearching:
		return r.search(ctx)
	case StateCaseSelected:
		return r.openCase(ctx)
	case StateCaseOpened:
		return r.inspectCase(ctx)
	case StateExamNotPresent:
		return r.closeCase(ctx)
	case StateExamSection:
		return r.openFindings(ctx)
	case StateFindingsEntry:
		return r.enterFindings(ctx)
	case StateSpecialFindings:
		return r.enterSpecialFindings(ctx)
	case StateReview:
		return r.review(ctx)
	case StateGradingOrDeclaration:
		return r.prepareGate(ctx)
	case StateExaminerDeclaration:
		return r.declare(ctx)
	case StateSubmission:
		return r.submit(ctx)
	default:
		return StateError, fmt.Errorf("no handler for state %s", state)
	}
}

func (r *recordRun) search(ctx context.Context) (State, error) {
	if _, err := EnsureSelected(ctx, r.s, RadioButton(casework.SearchByIdentifier)); err != nil {
		return StateError, err
	}
	field, err := r.s.Locate(ctx, TextField("ID"))
	if err != nil {
		return StateError, err
	}
	if err := r.s.Type(ctx, r.rec.ID, field); err != nil {
		return StateError, err
	}
	if err := r.click(ctx, Button("Search").ToRightOf(Button("Reset"))); err != nil {
		return StateError, err
	}
	if err := r.wait(ctx, casework.MarkerSelect); err != nil {
		return StateError, err
	}
	return StateCaseSelected, nil
}

func (r *recordRun) openCase(ctx context.Context) (State, error) {
	if err := r.settle(ctx); err != nil {
		return StateError, err
	}
	if err := r.click(ctx, Button("All")); err != nil {
		return StateError, err
	}
	if err := r.click(ctx, Button("Manage Case")); err != nil {
		return StateError, err
	}
	if err := r.wait(ctx, casework.MarkerCaseDetails); err != nil {
		return StateError, err
	}
	return StateCaseOpened, nil
}

// inspectCase skips the exam when the case has no active chest X-ray exam.
func (r *recordRun) inspectCase(ctx context.Context) (State, error) {
	ok, err := Present(ctx, r.s, Text(casework.ExamLink))
	if err != nil {
		return StateError, err
	}
	if !ok {
		r.log.Info("No active exam on case, closing")
		return StateExamNotPresent, nil
	}
	return StateExamSection, nil
}

func (r *recordRun) openFindings(ctx context.Context) (State, error) {
	if err := r.click(ctx, Text(casework.ExamLink)); err != nil {
		return StateError, err
	}
	if err := r.click(ctx, Text(r.profile.FindingsLink)); err != nil {
		return StateError, err
	}
	return StateFindingsEntry, nil
}

func (r *recordRun) enterFindings(ctx context.Context) (State, error) {
	if err := r.wait(ctx, r.profile.FindingsMarker); err != nil {
		return StateError, err
	}

	switch r.profile.Layout {
	case casework.LayoutAggregate:
		q := RadioButton(casework.FindingNormal).ToRightOf(Text("Findings"))
		if _, err := EnsureSelected(ctx, r.s, q); err != nil {
			return StateError, err
		}
	default:
		normals, err := r.s.LocateAll(ctx, RadioButton(casework.FindingNormal))
		if err != nil {
			return StateError, err
		}
		for _, c := range normals {
			if _, err := EnsureControlSelected(ctx, r.s, c); err != nil {
				return StateError, err
			}
		}
		if _, err := EnsureSelected(ctx, r.s, RadioButton(casework.TBEvidenceAbsent)); err != nil {
			return StateError, err
		}
		if _, err := EnsureSelected(ctx, r.s, tbSuspicionNo()); err != nil {
			return StateError, err
		}
	}

	if r.profile.SpecialFindings {
		return StateSpecialFindings, nil
	}
	return StateReview, nil
}

// tbSuspicionNo anchors "No" to question 7 so it cannot land on another
// question's "No" option.
func tbSuspicionNo() Query {
	question := Text(casework.TBSuspicionText)
	unset := RadioButton(casework.TBSuspicionUnset).ToRightOf(question)
	return RadioButton(casework.TBSuspicionNo).ToRightOf(unset)
}

func (r *recordRun) enterSpecialFindings(ctx context.Context) (State, error) {
	if err := r.click(ctx, Button("Next")); err != nil {
		return StateError, err
	}
	if err := r.wait(ctx, casework.MarkerSpecial); err != nil {
		return StateError, err
	}
	if _, err := EnsureSelected(ctx, r.s, RadioButton(casework.SpecialNone)); err != nil {
		return StateError, err
	}
	return StateReview, nil
}

func (r *recordRun) review(ctx context.Context) (State, error) {
	if err := r.click(ctx, Button("Next")); err != nil {
		return StateError, err
	}
	if err := r.wait(ctx, casework.MarkerReview); err != nil {
		return StateError, err
	}
	if err := r.settle(ctx); err != nil {
		return StateError, err
	}
	if err := r.click(ctx, Button("Next")); err != nil {
		return StateError, err
	}
	return StateGradingOrDeclaration, nil
}

func (r *recordRun) prepareGate(ctx context.Context) (State, error) {
	if err := r.wait(ctx, r.profile.GateMarker); err != nil {
		return StateError, err
	}
	clicked, err := ClickIfAvailable(ctx, r.s, Button(r.profile.PrepareButton))
	if err != nil {
		return StateError, err
	}
	if !clicked {
		r.log.Debug("Preparation already done", zap.String("gate", r.profile.GateTerm))
	}
	return StateExaminerDeclaration, nil
}

func (r *recordRun) declare(ctx context.Context) (State, error) {
	if err := r.wait(ctx, casework.MarkerDeclaration); err != nil {
		return StateError, err
	}
	if _, err := EnsureSelected(ctx, r.s, CheckBox(casework.DeclarationCheck)); err != nil {
		return StateError, err
	}
	if r.profile.RequiresGrade {
		if _, err := EnsureSelected(ctx, r.s, RadioButton(casework.GradeA)); err != nil {
			return StateError, err
		}
	}
	return StateSubmission, nil
}

func (r *recordRun) submit(ctx context.Context) (State, error) {
	clicked, err := ClickIfAvailable(ctx, r.s, Button("Submit Exam"))
	if err != nil {
		return StateError, err
	}
	if clicked {
		if err := r.s.WaitUntil(ctx, DialogOpens(), r.m.cfg.StepTimeout); err != nil {
			return StateError, err
		}
		if err := r.s.AcceptDialog(ctx); err != nil {
			return StateError, err
		}
		if err := r.wait(ctx, casework.MarkerSubmitted); err != nil {
			return StateError, err
		}
	} else {
		r.log.Info("Submit Exam not available, exam already submitted")
	}
	return r.closeCase(ctx)
}

func (r *recordRun) closeCase(ctx context.Context) (State, error) {
	if err := r.click(ctx, Button("Close")); err != nil {
		return StateError, err
	}
	return StateClosed, nil
}

// closeBestEffort tries to leave the case view after a failure. Errors are dropped.
func (r *recordRun) closeBestEffort(ctx context.Context) {
	if _, err := ClickIfAvailable(ctx, r.s, Button("Close")); err != nil {
		r.log.Debug("Best-effort close failed", zap.Error(err))
	}
}

func (r *recordRun) click(ctx context.Context, q Query) error {
	c, err := r.s.Locate(ctx, q)
	if err != nil {
		return err
	}
	return r.s.Click(ctx, c)
}

func (r *recordRun) wait(ctx context.Context, marker string) error {
	return r.s.WaitUntil(ctx, TextAppears(marker), r.m.cfg.StepTimeout)
}

func (r *recordRun) settle(ctx context.Context) error {
	if r.m.cfg.SettleDelay <= 0 {
		return nil
	}
	return r.m.sleep(ctx, r.m.cfg.SettleDelay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return Fault(ctx.Err())
	case <-t.C:
		return nil
	}
}
