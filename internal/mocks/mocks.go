// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/emedauto/internal/automation"
	"github.com/xkilldash9x/emedauto/internal/casework"
	"github.com/xkilldash9x/emedauto/internal/config"
	"github.com/xkilldash9x/emedauto/internal/report"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) EMedical() config.EMedicalConfig {
	args := m.Called()
	return args.Get(0).(config.EMedicalConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Automation() config.AutomationConfig {
	args := m.Called()
	return args.Get(0).(config.AutomationConfig)
}

func (m *MockConfig) Run() config.RunConfig {
	args := m.Called()
	return args.Get(0).(config.RunConfig)
}

func (m *MockConfig) SetCredentials(userID, password string) { m.Called(userID, password) }
func (m *MockConfig) SetBrowserHeadless(b bool)              { m.Called(b) }
func (m *MockConfig) SetMaxLoginAttempts(n int)              { m.Called(n) }
func (m *MockConfig) SetClosePolicy(p string)                { m.Called(p) }
func (m *MockConfig) SetSummaryPath(p string)                { m.Called(p) }

// -- Automation Surface Mocks --

// MockSurface mocks automation.Surface.
type MockSurface struct {
	mock.Mock
}

func (m *MockSurface) Locate(ctx context.Context, q automation.Query) (automation.Control, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(automation.Control), args.Error(1)
}

func (m *MockSurface) LocateAll(ctx context.Context, q automation.Query) ([]automation.Control, error) {
	args := m.Called(ctx, q)
	if c := args.Get(0); c != nil {
		return c.([]automation.Control), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSurface) Click(ctx context.Context, c automation.Control) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockSurface) Type(ctx context.Context, text string, c automation.Control) error {
	return m.Called(ctx, text, c).Error(0)
}

func (m *MockSurface) WaitUntil(ctx context.Context, cond automation.Condition, timeout time.Duration) error {
	return m.Called(ctx, cond, timeout).Error(0)
}

func (m *MockSurface) IsSelected(ctx context.Context, c automation.Control) (bool, error) {
	args := m.Called(ctx, c)
	return args.Bool(0), args.Error(1)
}

func (m *MockSurface) IsEnabled(ctx context.Context, c automation.Control) (bool, error) {
	args := m.Called(ctx, c)
	return args.Bool(0), args.Error(1)
}

func (m *MockSurface) AcceptDialog(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockSurface) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockLauncher mocks automation.Launcher.
type MockLauncher struct {
	mock.Mock
}

func (m *MockLauncher) Launch(ctx context.Context, opts automation.LaunchOptions) (automation.Surface, error) {
	args := m.Called(ctx, opts)
	if s := args.Get(0); s != nil {
		return s.(automation.Surface), args.Error(1)
	}
	return nil, args.Error(1)
}

// -- Orchestrator Dependency Mocks --

// MockAuthenticator mocks orchestrator.Authenticator.
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, creds automation.Credentials, headless bool, maxAttempts int) (*automation.Session, error) {
	args := m.Called(ctx, creds, headless, maxAttempts)
	if s := args.Get(0); s != nil {
		return s.(*automation.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockProcessor mocks orchestrator.Processor.
type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Process(ctx context.Context, session *automation.Session, rec casework.Record, profile casework.CountryProfile) (casework.Status, error) {
	args := m.Called(ctx, session, rec, profile)
	return args.Get(0).(casework.Status), args.Error(1)
}

// -- Reporter Mock --

// MockReporter mocks report.Reporter.
type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) Report(e report.Event) {
	m.Called(e)
}

var (
	_ config.Interface    = (*MockConfig)(nil)
	_ automation.Surface  = (*MockSurface)(nil)
	_ automation.Launcher = (*MockLauncher)(nil)
	_ report.Reporter     = (*MockReporter)(nil)
)
