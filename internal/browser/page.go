// internal/browser/page.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/emedauto/internal/automation"
	"github.com/xkilldash9x/emedauto/internal/browser/shim"
	"github.com/xkilldash9x/emedauto/internal/config"
)

// Page is a single browser tab driven through the locator shim.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc

	logger        *zap.Logger
	limiter       *rate.Limiter
	pollInterval  time.Duration
	actionTimeout time.Duration

	dialogOpen    atomic.Bool
	dialogMessage atomic.Value

	closeOnce sync.Once
}

var _ automation.Surface = (*Page)(nil)

// elementState mirrors the {found, value} objects returned by the shim.
type elementState struct {
	Found bool `json:"found"`
	Value bool `json:"value"`
}

func newPage(tabCtx context.Context, cancel context.CancelFunc, cfg config.AutomationConfig, logger *zap.Logger) *Page {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.ActionRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ActionRate), 1)
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	actionTimeout := cfg.StepTimeout
	if actionTimeout <= 0 {
		actionTimeout = 10 * time.Second
	}
	return &Page{
		ctx:           tabCtx,
		cancel:        cancel,
		logger:        logger.Named("page"),
		limiter:       limiter,
		pollInterval:  pollInterval,
		actionTimeout: actionTimeout,
	}
}

// listen tracks JavaScript dialogs. The callback runs on chromedp's event
// loop and must not block.
func (p *Page) listen() {
	chromedp.ListenTarget(p.ctx, func(ev any) {
		switch e := ev.(type) {
		case *page.EventJavascriptDialogOpening:
			p.dialogMessage.Store(e.Message)
			p.dialogOpen.Store(true)
		case *page.EventJavascriptDialogClosed:
			p.dialogOpen.Store(false)
		}
	})
}

func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func (p *Page) call(ctx context.Context, res any, fn string, args ...any) error {
	expr, err := shim.Call(fn, args...)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.Evaluate(expr, res))
}

// classify maps a chromedp error onto the automation taxonomy. Caller
// cancellation is passed through untouched. onStale, when set, is returned
// for our own deadline and for a page that navigated mid-call, since both
// mean the control is no longer there.
func (p *Page) classify(ctx context.Context, err error, onStale func() error) error {
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case p.ctx.Err() != nil:
		return automation.Fault(fmt.Errorf("browser closed: %w", err))
	case onStale != nil && (errors.Is(err, context.DeadlineExceeded) || isNavigating(err)):
		return onStale()
	default:
		return automation.Fault(err)
	}
}

// isNavigating reports errors raised when the document an evaluation ran in
// is replaced by a navigation. They clear up once the next page has loaded.
func isNavigating(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Execution context was destroyed") ||
		strings.Contains(msg, "Cannot find context with specified id") ||
		strings.Contains(msg, "Inspected target navigated or closed")
}

// Locate waits up to the step timeout for a control matching q to become
// visible and returns the first one.
func (p *Page) Locate(ctx context.Context, q automation.Query) (automation.Control, error) {
	controls, err := p.locate(ctx, q, true)
	if err != nil {
		return automation.Control{}, err
	}
	if len(controls) == 0 {
		return automation.Control{}, automation.NotFound(q)
	}
	return controls[0], nil
}

// LocateAll returns every visible control matching q in document order. It
// does not wait for a match, so an empty result means absent right now.
func (p *Page) LocateAll(ctx context.Context, q automation.Query) ([]automation.Control, error) {
	return p.locate(ctx, q, false)
}

// locate runs the shim's locate, retrying while the page is between
// documents and, when untilFound is set, while nothing matches yet.
func (p *Page) locate(ctx context.Context, q automation.Query, untilFound bool) ([]automation.Control, error) {
	deadline := time.NewTimer(p.actionTimeout)
	defer deadline.Stop()

	for {
		var ids []string
		err := p.call(ctx, &ids, "locate", q)
		switch {
		case err == nil && (len(ids) > 0 || !untilFound):
			controls := make([]automation.Control, 0, len(ids))
			for _, id := range ids {
				controls = append(controls, automation.Control{ID: id, Query: q})
			}
			return controls, nil
		case err != nil && !isNavigating(err):
			return nil, p.classify(ctx, err, nil)
		case err != nil:
			p.logger.Debug("Page navigating, retrying locate", zap.Stringer("query", q), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.ctx.Done():
			return nil, automation.Fault(errors.New("browser closed"))
		case <-deadline.C:
			return nil, automation.NotFound(q)
		case <-time.After(p.pollInterval):
		}
	}
}

func (p *Page) Click(ctx context.Context, c automation.Control) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	var ok bool
	if err := p.call(ctx, &ok, "click", c.ID); err != nil {
		return p.classify(ctx, err, func() error { return automation.NotFound(c.Query) })
	}
	if !ok {
		return automation.NotFound(c.Query)
	}
	p.logger.Debug("Clicked", zap.Stringer("control", c))
	return nil
}

// Type replaces the field's contents with text using real key events.
func (p *Page) Type(ctx context.Context, text string, c automation.Control) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	actionCtx, cancel := context.WithTimeout(ctx, p.actionTimeout)
	defer cancel()

	sel := shim.Selector(c.ID)
	err := p.run(actionCtx,
		chromedp.Clear(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, text, chromedp.ByQuery),
	)
	// The queries wait for the node, so a stale handle surfaces as our own deadline.
	return p.classify(ctx, err, func() error { return automation.NotFound(c.Query) })
}

// WaitUntil blocks until cond holds or timeout elapses.
func (p *Page) WaitUntil(ctx context.Context, cond automation.Condition, timeout time.Duration) error {
	if cond.Kind == automation.CondDialogOpen {
		return p.waitForDialog(ctx, cond, timeout)
	}

	expr, err := shim.Call("textPresent", cond.Text)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	for {
		err = p.run(ctx, chromedp.Poll(expr, nil,
			chromedp.WithPollingTimeout(time.Until(deadline)),
			chromedp.WithPollingInterval(p.pollInterval),
		))
		if errors.Is(err, chromedp.ErrPollingTimeout) {
			return automation.TimedOut(cond)
		}
		// The marker usually lives on the page being navigated to.
		if isNavigating(err) && ctx.Err() == nil {
			if time.Until(deadline) <= 0 {
				return automation.TimedOut(cond)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.pollInterval):
			}
			continue
		}
		return p.classify(ctx, err, nil)
	}
}

func (p *Page) waitForDialog(ctx context.Context, cond automation.Condition, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for !p.dialogOpen.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.ctx.Done():
			return automation.Fault(errors.New("browser closed"))
		case <-deadline.C:
			return automation.TimedOut(cond)
		case <-ticker.C:
		}
	}
	return nil
}

func (p *Page) IsSelected(ctx context.Context, c automation.Control) (bool, error) {
	return p.state(ctx, "selected", c)
}

func (p *Page) IsEnabled(ctx context.Context, c automation.Control) (bool, error) {
	return p.state(ctx, "enabled", c)
}

func (p *Page) state(ctx context.Context, fn string, c automation.Control) (bool, error) {
	var st elementState
	if err := p.call(ctx, &st, fn, c.ID); err != nil {
		return false, p.classify(ctx, err, func() error { return automation.NotFound(c.Query) })
	}
	if !st.Found {
		return false, automation.NotFound(c.Query)
	}
	return st.Value, nil
}

// AcceptDialog accepts the open alert or confirm box.
func (p *Page) AcceptDialog(ctx context.Context) error {
	if !p.dialogOpen.Load() {
		return fmt.Errorf("%w: no dialog is open", automation.ErrElementNotFound)
	}
	msg, _ := p.dialogMessage.Load().(string)
	p.logger.Debug("Accepting dialog", zap.String("message", msg))

	if err := p.run(ctx, page.HandleJavaScriptDialog(true)); err != nil {
		return p.classify(ctx, err, nil)
	}
	p.dialogOpen.Store(false)
	return nil
}

// Close shuts the browser down. It is safe to call more than once.
func (p *Page) Close(ctx context.Context) error {
	var err error
	p.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(p.ctx) }()
		select {
		case err = <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
		p.cancel()
		if errors.Is(err, context.Canceled) {
			// Already gone.
			err = nil
		}
		p.logger.Debug("Browser closed")
	})
	return err
}
