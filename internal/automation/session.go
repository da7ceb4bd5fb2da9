// File: internal/automation/session.go
package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/emedauto/internal/casework"
)

// Credentials for the remote application's login form.
type Credentials struct {
	UserID   string
	Password string
}

// String redacts the password so credentials can be logged safely.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{UserID: %q, Password: [REDACTED]}", c.UserID)
}

// Session is an authenticated surface. It is owned by the orchestrator for
// the lifetime of one run.
type Session struct {
	id       string
	surface  Surface
	headless bool

	closeOnce sync.Once
	closeErr  error
}

// NewSession wraps an already authenticated surface.
func NewSession(surface Surface, headless bool) *Session {
	return &Session{id: uuid.New().String(), surface: surface, headless: headless}
}

func (s *Session) ID() string       { return s.id }
func (s *Session) Surface() Surface { return s.surface }
func (s *Session) Headless() bool   { return s.headless }

// Close tears down the underlying surface. Repeated calls return the first result.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.surface.Close(ctx)
	})
	return s.closeErr
}

// GateConfig tunes the login sequence.
type GateConfig struct {
	BaseURL       string
	LoginTimeout  time.Duration
	RetryInterval time.Duration
	MaxAttempts   int
}

// Labels on the remote login form.
const (
	loginUserField     = "User id"
	loginPasswordField = "Password"
	loginButton        = "Logon"
)

// Gate performs the one-time authentication for a run.
type Gate struct {
	launcher Launcher
	cfg      GateConfig
	logger   *zap.Logger
}

// NewGate creates a Gate. MaxAttempts below one is treated as one.
func NewGate(launcher Launcher, cfg GateConfig, logger *zap.Logger) *Gate {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = 10 * time.Second
	}
	return &Gate{launcher: launcher, cfg: cfg, logger: logger.Named("gate")}
}

// Authenticate opens a session and logs in. Only timeouts are retried; a
// missing login control means the form layout changed and fails immediately.
// maxAttempts overrides the configured attempt count when positive.
func (g *Gate) Authenticate(ctx context.Context, creds Credentials, headless bool, maxAttempts int) (*Session, error) {
	if maxAttempts < 1 {
		maxAttempts = g.cfg.MaxAttempts
	}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if maxAttempts > 1 {
		// WithMaxRetries treats zero as unlimited, hence the StopBackOff above.
		policy = backoff.WithMaxRetries(backoff.NewConstantBackOff(g.cfg.RetryInterval), uint64(maxAttempts-1))
	}

	var (
		session  *Session
		attempts int
	)
	operation := func() error {
		attempts++
		g.logger.Info("Starting browser and logging in",
			zap.Int("attempt", attempts),
			zap.String("url", g.cfg.BaseURL),
			zap.String("user_id", creds.UserID),
		)
		s, err := g.attempt(ctx, creds, headless)
		if err == nil {
			session = s
			return nil
		}
		if errors.Is(err, ErrStepTimeout) && ctx.Err() == nil {
			g.logger.Warn("Login timed out", zap.Int("attempt", attempts), zap.Error(err))
			return err
		}
		if errors.Is(err, ErrElementNotFound) {
			g.logger.Error("Login fields not found, the page layout may have changed", zap.Error(err))
		} else {
			g.logger.Error("Browser error during login", zap.Error(err))
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		g.logger.Error("Login failed", zap.Int("attempts", attempts))
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		return nil, &AuthError{Attempts: attempts, Err: err}
	}

	g.logger.Info("Login successful", zap.String("session_id", session.ID()))
	return session, nil
}

func (g *Gate) attempt(ctx context.Context, creds Credentials, headless bool) (*Session, error) {
	surface, err := g.launcher.Launch(ctx, LaunchOptions{URL: g.cfg.BaseURL, Headless: headless})
	if err != nil {
		return nil, Fault(fmt.Errorf("launch: %w", err))
	}

	if err := g.login(ctx, surface, creds); err != nil {
		if closeErr := surface.Close(context.WithoutCancel(ctx)); closeErr != nil {
			g.logger.Debug("Closing surface after failed login", zap.Error(closeErr))
		}
		return nil, err
	}
	return NewSession(surface, headless), nil
}

func (g *Gate) login(ctx context.Context, s Surface, creds Credentials) error {
	user, err := s.Locate(ctx, TextField(loginUserField))
	if err != nil {
		return err
	}
	if err := s.Type(ctx, creds.UserID, user); err != nil {
		return err
	}
	pass, err := s.Locate(ctx, TextField(loginPasswordField))
	if err != nil {
		return err
	}
	if err := s.Type(ctx, creds.Password, pass); err != nil {
		return err
	}
	logon, err := s.Locate(ctx, Button(loginButton))
	if err != nil {
		return err
	}
	if err := s.Click(ctx, logon); err != nil {
		return err
	}
	return s.WaitUntil(ctx, TextAppears(casework.MarkerCaseSearch), g.cfg.LoginTimeout)
}
