// File: internal/automation/guards.go
package automation

import (
	"context"
	"errors"
)

// EnsureSelected locates q and clicks it only if it is not already selected.
// It reports whether a click was issued.
func EnsureSelected(ctx context.Context, s Surface, q Query) (bool, error) {
	c, err := s.Locate(ctx, q)
	if err != nil {
		return false, err
	}
	return EnsureControlSelected(ctx, s, c)
}

// EnsureControlSelected is EnsureSelected for an already located control.
func EnsureControlSelected(ctx context.Context, s Surface, c Control) (bool, error) {
	selected, err := s.IsSelected(ctx, c)
	if err != nil {
		return false, err
	}
	if selected {
		return false, nil
	}
	if err := s.Click(ctx, c); err != nil {
		return false, err
	}
	return true, nil
}

// Present reports whether q is on screen right now. It does not wait for the
// control to appear.
func Present(ctx context.Context, s Surface, q Query) (bool, error) {
	controls, err := s.LocateAll(ctx, q)
	switch {
	case err == nil:
		return len(controls) > 0, nil
	case errors.Is(err, ErrElementNotFound):
		return false, nil
	default:
		return false, err
	}
}

// ClickIfAvailable clicks q when it is both present and enabled. An absent
// or disabled control is treated as already handled.
func ClickIfAvailable(ctx context.Context, s Surface, q Query) (bool, error) {
	controls, err := s.LocateAll(ctx, q)
	if errors.Is(err, ErrElementNotFound) || (err == nil && len(controls) == 0) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	c := controls[0]
	enabled, err := s.IsEnabled(ctx, c)
	if err != nil || !enabled {
		return false, err
	}
	if err := s.Click(ctx, c); err != nil {
		return false, err
	}
	return true, nil
}
