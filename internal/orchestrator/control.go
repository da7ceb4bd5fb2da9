package orchestrator

import (
	"fmt"
	"strings"
	"sync"
)

// StopToken asks a run to stop before the next record. It is safe for
// concurrent use, idempotent, and a nil token is never stopped.
type StopToken struct {
	once sync.Once
	ch   chan struct{}
	mu   sync.Mutex
}

// NewStopToken creates an unstopped token.
func NewStopToken() *StopToken {
	return &StopToken{ch: make(chan struct{})}
}

// Stop requests a cooperative stop.
func (t *StopToken) Stop() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.done()) })
}

// Stopped reports whether Stop has been called.
func (t *StopToken) Stopped() bool {
	if t == nil {
		return false
	}
	select {
	case <-t.done():
		return true
	default:
		return false
	}
}

// Done is closed once Stop is called.
func (t *StopToken) Done() <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.done()
}

func (t *StopToken) done() chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ch == nil {
		t.ch = make(chan struct{})
	}
	return t.ch
}

// ClosePolicy decides whether the browser is closed after a successful run.
type ClosePolicy int

const (
	// CloseHeadlessOnly closes headless sessions and leaves visible ones open.
	CloseHeadlessOnly ClosePolicy = iota
	CloseAlways
	CloseNever
)

var closePolicyNames = map[ClosePolicy]string{
	CloseHeadlessOnly: "headless",
	CloseAlways:       "always",
	CloseNever:        "never",
}

func (p ClosePolicy) String() string {
	if name, ok := closePolicyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("ClosePolicy(%d)", int(p))
}

// ParseClosePolicy parses "always", "never" or "headless".
func ParseClosePolicy(s string) (ClosePolicy, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for p, name := range closePolicyNames {
		if name == want {
			return p, nil
		}
	}
	return CloseHeadlessOnly, fmt.Errorf("unknown close policy %q (want always, never or headless)", s)
}

// ClosePolicyFor maps the "close browser when done" switch. Unchecked still
// closes headless sessions since nobody can see them.
func ClosePolicyFor(closeOnCompletion bool) ClosePolicy {
	if closeOnCompletion {
		return CloseAlways
	}
	return CloseHeadlessOnly
}

// ShouldClose reports whether a session launched with headless is closed.
func (p ClosePolicy) ShouldClose(headless bool) bool {
	switch p {
	case CloseAlways:
		return true
	case CloseNever:
		return false
	default:
		return headless
	}
}
