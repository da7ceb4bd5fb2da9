// internal/automation/machine_test.go
package automation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/emedauto/internal/automation"
	"github.com/xkilldash9x/emedauto/internal/automation/fake"
	"github.com/xkilldash9x/emedauto/internal/casework"
)

// harness wires a Machine to a fake application and records its transitions.
type harness struct {
	app     *fake.App
	session *automation.Session
	machine *automation.Machine
	states  []automation.State
	sleeps  []time.Duration
}

func newHarness(t *testing.T, cfg fake.AppConfig, logger *zap.Logger) *harness {
	t.Helper()
	h := &harness{app: fake.NewApp(cfg)}
	h.session = automation.NewSession(launch(t, h.app), true)
	h.machine = automation.NewMachine(
		automation.MachineConfig{StepTimeout: time.Second, SettleDelay: time.Second},
		logger,
		automation.WithTransitionHook(func(tr automation.Transition) { h.states = append(h.states, tr.To) }),
		automation.WithSleeper(func(_ context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		}),
	)
	return h
}

func (h *harness) process(t *testing.T, id string) (casework.Status, error) {
	t.Helper()
	rec := casework.NewRecord(id)
	profile, ok := casework.ProfileFor(rec.Country)
	require.True(t, ok, "no profile for %s", id)
	return h.machine.Process(context.Background(), h.session, rec, profile)
}

func TestMachine_Profiles(t *testing.T) {
	base := []automation.State{
		automation.StateSearching,
		automation.StateCaseSelected,
		automation.StateCaseOpened,
		automation.StateExamSection,
		automation.StateFindingsEntry,
	}
	tail := []automation.State{
		automation.StateReview,
		automation.StateGradingOrDeclaration,
		automation.StateExaminerDeclaration,
		automation.StateSubmission,
		automation.StateClosed,
	}
	join := func(parts ...[]automation.State) []automation.State {
		var out []automation.State
		for _, p := range parts {
			out = append(out, p...)
		}
		return out
	}

	tests := []struct {
		id         string
		states     []automation.State
		normals    int
		graded     bool
		prepare    string
		findingsOn string
	}{
		{id: "HAP1001", states: join(base, tail), normals: 3, graded: true, prepare: "Prepare for grading", findingsOn: "Detailed radiology findings"},
		{id: "NZER2002", states: join(base, tail), normals: 3, graded: true, prepare: "Prepare for grading", findingsOn: "Detailed radiology findings"},
		{id: "IME3003", states: join(base, []automation.State{automation.StateSpecialFindings}, tail), normals: 3, graded: true, prepare: "Prepare for grading", findingsOn: "Detailed radiology findings"},
		{id: "CEAC4004", states: join(base, tail), normals: 1, prepare: "Prepare for declaration", findingsOn: "Findings"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			h := newHarness(t, fake.AppConfig{}, zap.NewNop())
			status, err := h.process(t, tt.id)
			require.NoError(t, err)
			assert.Equal(t, casework.StatusSuccess, status)

			if diff := cmp.Diff(tt.states, h.states); diff != "" {
				t.Errorf("state sequence mismatch (-want +got):\n%s", diff)
			}

			assert.Equal(t, tt.normals, h.app.ClicksOn(casework.FindingNormal))
			assert.Equal(t, 1, h.app.ClicksOn(tt.findingsOn))
			assert.Equal(t, 1, h.app.ClicksOn(tt.prepare))
			assert.Equal(t, 1, h.app.ClicksOn(casework.DeclarationCheck))
			assert.Equal(t, 1, h.app.ClicksOn("Submit Exam"))
			assert.Equal(t, 1, h.app.ClicksOn("Close"))
			if tt.graded {
				assert.Equal(t, 1, h.app.ClicksOn(casework.GradeA))
			} else {
				assert.Zero(t, h.app.ClicksOn(casework.GradeA))
			}
			assert.Equal(t, []time.Duration{time.Second, time.Second}, h.sleeps)
			assert.Contains(t, h.app.Typed(), tt.id)
		})
	}
}

func TestMachine_PerItemFindings(t *testing.T) {
	h := newHarness(t, fake.AppConfig{NormalItems: 5}, zap.NewNop())
	_, err := h.process(t, "TRN0001")
	require.NoError(t, err)

	assert.Equal(t, 5, h.app.ClicksOn(casework.FindingNormal))
	assert.Equal(t, 1, h.app.ClicksOn(casework.TBEvidenceAbsent))

	var tbNo []automation.Query
	for _, c := range h.app.Clicks() {
		if c.Query.Label == casework.TBSuspicionNo {
			tbNo = append(tbNo, c.Query)
		}
	}
	require.Len(t, tbNo, 1)
	require.NotNil(t, tbNo[0].RightOf, "TB suspicion answer must be anchored")
	assert.Equal(t, casework.TBSuspicionUnset, tbNo[0].RightOf.Label)
	require.NotNil(t, tbNo[0].RightOf.RightOf)
	assert.Equal(t, casework.TBSuspicionText, tbNo[0].RightOf.RightOf.Label)
}

func TestMachine_AggregateFindingsAnchoredToLabel(t *testing.T) {
	h := newHarness(t, fake.AppConfig{}, zap.NewNop())
	_, err := h.process(t, "CEAC9")
	require.NoError(t, err)

	for _, c := range h.app.Clicks() {
		if c.Query.Label == casework.FindingNormal {
			require.NotNil(t, c.Query.RightOf)
			assert.Equal(t, "Findings", c.Query.RightOf.Label)
		}
	}
	assert.Zero(t, h.app.ClicksOn(casework.TBEvidenceAbsent))
	assert.Zero(t, h.app.ClicksOn(casework.SpecialNone))
}

func TestMachine_IdempotentReentry(t *testing.T) {
	h := newHarness(t, fake.AppConfig{}, zap.NewNop())
	_, err := h.process(t, "HAP7")
	require.NoError(t, err)
	first := h.app.ClicksOn(casework.FindingNormal)

	// Same case again: every selector is already set so no extra radio clicks happen.
	_, err = h.process(t, "HAP7")
	require.NoError(t, err)
	assert.Equal(t, first, h.app.ClicksOn(casework.FindingNormal))
	assert.Equal(t, 1, h.app.ClicksOn(casework.TBEvidenceAbsent))
	assert.Equal(t, 1, h.app.ClicksOn(casework.GradeA))
}

func TestMachine_ExamNotPresent(t *testing.T) {
	h := newHarness(t, fake.AppConfig{NoExam: func(string) bool { return true }}, zap.NewNop())
	status, err := h.process(t, "HAP1")
	require.NoError(t, err)
	assert.Equal(t, casework.StatusSuccess, status)

	want := []automation.State{
		automation.StateSearching,
		automation.StateCaseSelected,
		automation.StateCaseOpened,
		automation.StateExamNotPresent,
		automation.StateClosed,
	}
	if diff := cmp.Diff(want, h.states); diff != "" {
		t.Errorf("state sequence mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, h.app.ClicksOn("Close"))
	assert.Zero(t, h.app.ClicksOn(casework.FindingNormal))
}

func TestMachine_AlreadySubmitted(t *testing.T) {
	h := newHarness(t, fake.AppConfig{Disabled: map[string]bool{"Submit Exam": true, "Prepare for grading": true}}, zap.NewNop())
	status, err := h.process(t, "NZHR5")
	require.NoError(t, err)
	assert.Equal(t, casework.StatusSuccess, status)

	assert.Zero(t, h.app.ClicksOn("Submit Exam"))
	assert.Zero(t, h.app.ClicksOn("Prepare for grading"))
	for _, w := range h.app.Waits() {
		assert.NotEqual(t, automation.DialogOpens(), w, "no dialog expected without a submit click")
	}
}

func TestMachine_StepTimeoutIsRecoverable(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := newHarness(t, fake.AppConfig{
		TimeoutOn: func(id, marker string) bool { return id == "IME3" && marker == "Detailed question" },
	}, zap.New(core))

	status, err := h.process(t, "IME3")
	require.NoError(t, err, "a step timeout must not abort the run")
	assert.Equal(t, casework.StatusFailed, status)
	assert.Equal(t, automation.StateError, h.states[len(h.states)-1])
	assert.Equal(t, 1, h.app.ClicksOn("Close"), "best-effort close after failure")

	failures := logs.FilterMessage("Automation failed").All()
	require.Len(t, failures, 1)
	fields := failures[0].ContextMap()
	assert.Equal(t, "FindingsEntry", fields["step"])
	assert.Equal(t, "StepTimeout", fields["kind"])
	assert.Equal(t, "IME3", fields["record"])

	// The next record on the same session is unaffected.
	status, err = h.process(t, "HAP1")
	require.NoError(t, err)
	assert.Equal(t, casework.StatusSuccess, status)
}

func TestMachine_MissingControlIsRecoverable(t *testing.T) {
	h := newHarness(t, fake.AppConfig{
		MissingOn: func(_ string, q automation.Query) bool { return q.Label == "Manage Case" },
	}, zap.NewNop())

	status, err := h.process(t, "HAP1")
	require.NoError(t, err)
	assert.Equal(t, casework.StatusFailed, status)
}

func TestMachine_SurfaceFaultIsFatal(t *testing.T) {
	lost := errors.New("websocket closed")
	h := newHarness(t, fake.AppConfig{
		FaultOn: func(id, op string) error {
			if id == "HAP1" && op == "click" {
				return lost
			}
			return nil
		},
	}, zap.NewNop())

	status, err := h.process(t, "HAP1")
	require.Error(t, err)
	assert.Equal(t, casework.StatusFailed, status)
	assert.ErrorIs(t, err, lost)
	assert.ErrorIs(t, err, automation.ErrSurfaceFault)

	var stepErr *automation.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, automation.StateSearching, stepErr.Step)
}

func TestMachine_CancelledDuringSettle(t *testing.T) {
	app := fake.NewApp(fake.AppConfig{})
	session := automation.NewSession(launch(t, app), true)
	m := automation.NewMachine(automation.MachineConfig{SettleDelay: time.Hour}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	rec := casework.NewRecord("HAP1")
	profile, _ := casework.ProfileFor(rec.Country)
	status, err := m.Process(ctx, session, rec, profile)
	assert.Equal(t, casework.StatusFailed, status)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, automation.IsFatal(err))
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "GradingOrDeclaration", automation.StateGradingOrDeclaration.String())
	assert.Equal(t, "State(99)", automation.State(99).String())
	assert.True(t, automation.StateError.Terminal())
	assert.False(t, automation.StateSubmission.Terminal())
}
