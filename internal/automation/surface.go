// File: internal/automation/surface.go
package automation

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ControlKind is the type of on-screen control a Query targets.
type ControlKind string

const (
	KindText        ControlKind = "text"
	KindButton      ControlKind = "button"
	KindTextField   ControlKind = "textfield"
	KindRadioButton ControlKind = "radio"
	KindCheckBox    ControlKind = "checkbox"
)

// Query locates a control by its visible label, optionally constrained to
// lie to the right of another control.
type Query struct {
	Kind    ControlKind `json:"kind"`
	Label   string      `json:"label"`
	RightOf *Query      `json:"rightOf,omitempty"`
}

// String renders the query the way it reads on screen, e.g.
// `radio "No" right of radio "Not selected"`.
func (q Query) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %q", q.Kind, q.Label)
	if q.RightOf != nil {
		sb.WriteString(" right of ")
		sb.WriteString(q.RightOf.String())
	}
	return sb.String()
}

// ToRightOf returns a copy of q anchored to the right of anchor.
func (q Query) ToRightOf(anchor Query) Query {
	a := anchor
	q.RightOf = &a
	return q
}

func Text(label string) Query        { return Query{Kind: KindText, Label: label} }
func Button(label string) Query      { return Query{Kind: KindButton, Label: label} }
func TextField(label string) Query   { return Query{Kind: KindTextField, Label: label} }
func RadioButton(label string) Query { return Query{Kind: KindRadioButton, Label: label} }
func CheckBox(label string) Query    { return Query{Kind: KindCheckBox, Label: label} }

// Control is a typed handle to a located control. Handles are only valid
// until the page navigates.
type Control struct {
	ID    string
	Query Query
}

func (c Control) String() string { return c.Query.String() }

// ConditionKind selects what WaitUntil waits for.
type ConditionKind int

const (
	CondTextPresent ConditionKind = iota
	CondDialogOpen
)

// Condition is something WaitUntil can block on.
type Condition struct {
	Kind ConditionKind
	Text string
}

// TextAppears waits for text to be shown anywhere on the page.
func TextAppears(text string) Condition { return Condition{Kind: CondTextPresent, Text: text} }

// DialogOpens waits for a JavaScript dialog (alert/confirm) to open.
func DialogOpens() Condition { return Condition{Kind: CondDialogOpen} }

func (c Condition) String() string {
	if c.Kind == CondDialogOpen {
		return "dialog"
	}
	return fmt.Sprintf("text %q", c.Text)
}

// Surface is the capability set the core needs from a remote UI session.
// Implementations return errors wrapping ErrElementNotFound, ErrStepTimeout or
// ErrSurfaceFault. A Surface is not safe for concurrent use.
type Surface interface {
	// Locate waits for a control matching q to appear and returns the first one.
	Locate(ctx context.Context, q Query) (Control, error)
	// LocateAll returns every current match in document order without waiting;
	// an empty result is not an error.
	LocateAll(ctx context.Context, q Query) ([]Control, error)
	Click(ctx context.Context, c Control) error
	Type(ctx context.Context, text string, c Control) error
	WaitUntil(ctx context.Context, cond Condition, timeout time.Duration) error
	IsSelected(ctx context.Context, c Control) (bool, error)
	IsEnabled(ctx context.Context, c Control) (bool, error)
	// AcceptDialog accepts the currently open JavaScript dialog.
	AcceptDialog(ctx context.Context) error
	Close(ctx context.Context) error
}

// LaunchOptions configures a new remote session.
type LaunchOptions struct {
	URL      string
	Headless bool
}

// Launcher opens new surfaces pointed at the remote application.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Surface, error)
}
