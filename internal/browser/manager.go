// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/emedauto/internal/automation"
	"github.com/xkilldash9x/emedauto/internal/browser/shim"
	"github.com/xkilldash9x/emedauto/internal/config"
)

// launchTimeout bounds browser start up and the first navigation.
const launchTimeout = 60 * time.Second

// Manager launches Chrome instances for the eMedical portal. Every Launch
// starts a separate browser process so a failed login attempt can be thrown
// away without affecting the next one.
type Manager struct {
	browser    config.BrowserConfig
	automation config.AutomationConfig
	logger     *zap.Logger
}

var _ automation.Launcher = (*Manager)(nil)

// NewManager creates a Manager.
func NewManager(browserCfg config.BrowserConfig, automationCfg config.AutomationConfig, logger *zap.Logger) *Manager {
	return &Manager{
		browser:    browserCfg,
		automation: automationCfg,
		logger:     logger.Named("browser_manager"),
	}
}

// Launch starts a browser, opens a tab on opts.URL and returns it as a Surface.
// The browser outlives ctx; it is only torn down by Surface.Close.
func (m *Manager) Launch(ctx context.Context, opts automation.LaunchOptions) (automation.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	script, err := shim.Locator()
	if err != nil {
		return nil, err
	}

	m.logger.Info("Launching browser", zap.String("url", opts.URL), zap.Bool("headless", opts.Headless))

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), m.buildAllocatorOptions(opts.Headless)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(m.logger.Sugar().Debugf),
		chromedp.WithErrorf(m.logger.Sugar().Debugf),
	)

	p := newPage(tabCtx, func() {
		tabCancel()
		allocCancel()
	}, m.automation, m.logger)
	p.listen()

	// The first Run allocates the browser and binds its lifetime to the
	// context it is given, so it must be the tab context itself.
	if err := m.start(ctx, tabCtx); err != nil {
		p.cancel()
		return nil, err
	}

	launchCtx, cancel := CombineContext(tabCtx, ctx)
	defer cancel()
	launchCtx, cancelTimeout := context.WithTimeout(launchCtx, launchTimeout)
	defer cancelTimeout()

	err = chromedp.Run(launchCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}),
		chromedp.Navigate(opts.URL),
	)
	if err != nil {
		p.cancel()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("browser failed to start or load %s: %w", opts.URL, err)
	}

	m.logger.Debug("Browser launched and page loaded.")
	return p, nil
}

// start launches the browser process for tabCtx, giving up when ctx is done
// or launchTimeout passes.
func (m *Manager) start(ctx, tabCtx context.Context) error {
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()

	timer := time.NewTimer(launchTimeout)
	defer timer.Stop()

	select {
	case err := <-started:
		if err != nil {
			return fmt.Errorf("browser failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
		chromedp.Cancel(tabCtx)
		<-started
		return ctx.Err()
	case <-timer.C:
		chromedp.Cancel(tabCtx)
		<-started
		return fmt.Errorf("browser did not start within %s", launchTimeout)
	}
}

// buildAllocatorOptions assembles the Chrome flags on top of chromedp's defaults.
func (m *Manager) buildAllocatorOptions(headless bool) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)

	flags := allocatorFlags(m.browser, headless, runtime.GOOS)
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, chromedp.Flag(name, flags[name]))
	}

	if m.browser.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(m.browser.ExecPath))
	}
	if m.browser.WindowWidth > 0 && m.browser.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(m.browser.WindowWidth, m.browser.WindowHeight))
	}
	return opts
}

// allocatorFlags returns the flags to set, keyed by name. A false value
// removes a flag the defaults would otherwise pass.
func allocatorFlags(cfg config.BrowserConfig, headless bool, goos string) map[string]any {
	flags := map[string]any{
		// Hides the "controlled by automated software" infobar.
		"enable-automation":             false,
		"disable-blink-features":        "AutomationControlled",
		"headless":                      headless,
		"disable-extensions":            true,
		"disable-gpu":                   true,
		"disable-background-networking": true,
		"disable-component-update":      true,
		"incognito":                     cfg.Incognito,
	}

	// Container friendly defaults.
	if goos == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
	}

	// Custom arguments from the config file win.
	for _, arg := range cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimSpace(arg), "=")
		name = strings.TrimPrefix(name, "--")
		if name == "" {
			continue
		}
		if hasValue {
			flags[name] = value
		} else {
			flags[name] = true
		}
	}
	return flags
}
