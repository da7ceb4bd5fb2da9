// Package fake provides an in-memory stand-in for the eMedical web
// application so the form sequence can be exercised without a browser.
package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/emedauto/internal/automation"
	"github.com/xkilldash9x/emedauto/internal/casework"
)

// AppConfig scripts how the fake application responds.
type AppConfig struct {
	// NoExam reports cases whose active-exam marker is absent.
	NoExam func(id string) bool
	// TimeoutOn reports markers that never appear for a case.
	TimeoutOn func(id, marker string) bool
	// MissingOn reports controls that cannot be located for a case.
	MissingOn func(id string, q automation.Query) bool
	// FaultOn returns a non-nil error to simulate a lost connection.
	FaultOn func(id string, op string) error
	// Disabled lists button labels that are present but disabled.
	Disabled map[string]bool
	// Preselected lists control IDs that start out selected on every case.
	Preselected map[string]bool
	// NormalItems is the number of per-item "Normal" radios. Defaults to 3.
	NormalItems int
	// LoginTimeouts is the number of login attempts whose post-login marker never shows.
	LoginTimeouts int
	// LoginMissing makes the login form fields unlocatable.
	LoginMissing bool
}

// App is the shared state behind every surface the fake launcher hands out.
type App struct {
	cfg AppConfig

	mu         sync.Mutex
	current    string
	selected   map[string]bool
	dialogOpen bool
	loggedIn   bool
	launches   int
	closed     int
	clicks     []automation.Control
	waits      []automation.Condition
	typed      []string
}

// NewApp creates a fake application.
func NewApp(cfg AppConfig) *App {
	if cfg.NormalItems == 0 {
		cfg.NormalItems = 3
	}
	return &App{cfg: cfg, selected: make(map[string]bool)}
}

// Key identifies a control's selection state within a case.
func Key(id string, c automation.Control) string {
	return id + "|" + c.ID
}

// Clicks returns every clicked control, in order.
func (a *App) Clicks() []automation.Control {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]automation.Control(nil), a.clicks...)
}

// ClicksOn counts clicks on controls with the given label.
func (a *App) ClicksOn(label string) int {
	n := 0
	for _, c := range a.Clicks() {
		if c.Query.Label == label {
			n++
		}
	}
	return n
}

// Waits returns every awaited condition, in order.
func (a *App) Waits() []automation.Condition {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]automation.Condition(nil), a.waits...)
}

// Typed returns every string typed into a field.
func (a *App) Typed() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.typed...)
}

// Launches returns how many surfaces were opened.
func (a *App) Launches() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.launches
}

// Closed returns how many surfaces were closed.
func (a *App) Closed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Selected reports whether control c is selected on case id.
func (a *App) Selected(id string, c automation.Control) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isSelected(id, c)
}

func (a *App) isSelected(id string, c automation.Control) bool {
	return a.selected[Key(id, c)] || a.cfg.Preselected[c.ID]
}

// Launcher hands out surfaces bound to an App.
type Launcher struct {
	App *App
	// Err, when set, fails every launch.
	Err error
}

// Launch implements automation.Launcher.
func (l *Launcher) Launch(ctx context.Context, opts automation.LaunchOptions) (automation.Surface, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.App.mu.Lock()
	l.App.launches++
	l.App.loggedIn = false
	l.App.mu.Unlock()
	return &Surface{app: l.App}, nil
}

// Surface implements automation.Surface on top of an App.
type Surface struct {
	app *App
}

var _ automation.Surface = (*Surface)(nil)

func (s *Surface) fault(op string) error {
	if err := s.app.cfg.FaultOn; err != nil {
		if e := err(s.app.current, op); e != nil {
			return automation.Fault(e)
		}
	}
	return nil
}

func isLoginField(q automation.Query) bool {
	return (q.Kind == automation.KindTextField && (q.Label == "User id" || q.Label == "Password")) ||
		(q.Kind == automation.KindButton && q.Label == "Logon")
}

// Locate implements automation.Surface.
func (s *Surface) Locate(ctx context.Context, q automation.Query) (automation.Control, error) {
	s.app.mu.Lock()
	defer s.app.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return automation.Control{}, automation.Fault(err)
	}
	if err := s.fault("locate"); err != nil {
		return automation.Control{}, err
	}
	if isLoginField(q) && s.app.cfg.LoginMissing {
		return automation.Control{}, automation.NotFound(q)
	}
	if q.Kind == automation.KindText && q.Label == casework.ExamLink && s.app.cfg.NoExam != nil && s.app.cfg.NoExam(s.app.current) {
		return automation.Control{}, automation.NotFound(q)
	}
	if s.app.cfg.MissingOn != nil && s.app.cfg.MissingOn(s.app.current, q) {
		return automation.Control{}, automation.NotFound(q)
	}
	return automation.Control{ID: q.String(), Query: q}, nil
}

// LocateAll implements automation.Surface.
func (s *Surface) LocateAll(ctx context.Context, q automation.Query) ([]automation.Control, error) {
	if _, err := s.Locate(ctx, q); err != nil {
		if automation.IsRecoverable(err) {
			return nil, nil
		}
		return nil, err
	}
	n := 1
	if q.Kind == automation.KindRadioButton && q.Label == casework.FindingNormal && q.RightOf == nil {
		n = s.app.cfg.NormalItems
	}
	out := make([]automation.Control, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, automation.Control{ID: fmt.Sprintf("%s#%d", q, i), Query: q})
	}
	return out, nil
}

// Click implements automation.Surface.
func (s *Surface) Click(ctx context.Context, c automation.Control) error {
	s.app.mu.Lock()
	defer s.app.mu.Unlock()

	if err := s.fault("click"); err != nil {
		return err
	}
	s.app.clicks = append(s.app.clicks, c)
	switch c.Query.Kind {
	case automation.KindRadioButton, automation.KindCheckBox:
		s.app.selected[Key(s.app.current, c)] = true
	case automation.KindButton:
		switch c.Query.Label {
		case "Submit Exam":
			s.app.dialogOpen = true
		case "Logon":
			if s.app.cfg.LoginTimeouts > 0 {
				s.app.cfg.LoginTimeouts--
			} else {
				s.app.loggedIn = true
			}
		}
	}
	return nil
}

// Type implements automation.Surface.
func (s *Surface) Type(ctx context.Context, text string, c automation.Control) error {
	s.app.mu.Lock()
	defer s.app.mu.Unlock()

	if err := s.fault("type"); err != nil {
		return err
	}
	if c.Query.Label == "ID" {
		s.app.current = text
	}
	if c.Query.Label != "Password" {
		s.app.typed = append(s.app.typed, text)
	}
	return nil
}

// WaitUntil implements automation.Surface. Conditions either hold at once or
// fail with a timeout; the fake never sleeps.
func (s *Surface) WaitUntil(ctx context.Context, cond automation.Condition, timeout time.Duration) error {
	s.app.mu.Lock()
	defer s.app.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return automation.Fault(err)
	}
	if err := s.fault("wait"); err != nil {
		return err
	}
	s.app.waits = append(s.app.waits, cond)

	switch {
	case cond.Kind == automation.CondDialogOpen:
		if !s.app.dialogOpen {
			return automation.TimedOut(cond)
		}
	case cond.Text == casework.MarkerCaseSearch:
		if !s.app.loggedIn {
			return automation.TimedOut(cond)
		}
	case s.app.cfg.TimeoutOn != nil && s.app.cfg.TimeoutOn(s.app.current, cond.Text):
		return automation.TimedOut(cond)
	}
	return nil
}

// IsSelected implements automation.Surface.
func (s *Surface) IsSelected(ctx context.Context, c automation.Control) (bool, error) {
	s.app.mu.Lock()
	defer s.app.mu.Unlock()

	if err := s.fault("selected"); err != nil {
		return false, err
	}
	return s.app.isSelected(s.app.current, c), nil
}

// IsEnabled implements automation.Surface.
func (s *Surface) IsEnabled(ctx context.Context, c automation.Control) (bool, error) {
	s.app.mu.Lock()
	defer s.app.mu.Unlock()

	if err := s.fault("enabled"); err != nil {
		return false, err
	}
	return !s.app.cfg.Disabled[c.Query.Label], nil
}

// AcceptDialog implements automation.Surface.
func (s *Surface) AcceptDialog(ctx context.Context) error {
	s.app.mu.Lock()
	defer s.app.mu.Unlock()

	if !s.app.dialogOpen {
		return fmt.Errorf("%w: no dialog open", automation.ErrElementNotFound)
	}
	s.app.dialogOpen = false
	return nil
}

// Close implements automation.Surface.
func (s *Surface) Close(ctx context.Context) error {
	s.app.mu.Lock()
	defer s.app.mu.Unlock()
	s.app.closed++
	return nil
}
