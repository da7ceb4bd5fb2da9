// internal/automation/gate_test.go
package automation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/emedauto/internal/automation"
	"github.com/xkilldash9x/emedauto/internal/automation/fake"
)

var testCreds = automation.Credentials{UserID: "radiologist", Password: "s3cret"}

func newGate(app *fake.App, maxAttempts int) *automation.Gate {
	return automation.NewGate(&fake.Launcher{App: app}, automation.GateConfig{
		BaseURL:       "https://emedical.example.test",
		LoginTimeout:  time.Second,
		RetryInterval: time.Millisecond,
		MaxAttempts:   maxAttempts,
	}, zap.NewNop())
}

func TestGate_Authenticate(t *testing.T) {
	t.Run("first attempt succeeds", func(t *testing.T) {
		app := fake.NewApp(fake.AppConfig{})
		session, err := newGate(app, 1).Authenticate(context.Background(), testCreds, true, 0)
		require.NoError(t, err)
		require.NotNil(t, session)

		assert.NotEmpty(t, session.ID())
		assert.True(t, session.Headless())
		assert.Equal(t, 1, app.Launches())
		assert.Equal(t, 0, app.Closed())
		assert.Equal(t, []string{"radiologist"}, app.Typed(), "password must never be recorded")
	})

	t.Run("timeouts are retried", func(t *testing.T) {
		app := fake.NewApp(fake.AppConfig{LoginTimeouts: 2})
		session, err := newGate(app, 3).Authenticate(context.Background(), testCreds, false, 0)
		require.NoError(t, err)
		require.NotNil(t, session)

		assert.Equal(t, 3, app.Launches())
		assert.Equal(t, 2, app.Closed(), "failed attempts must release their surface")
	})

	t.Run("attempts exhausted", func(t *testing.T) {
		app := fake.NewApp(fake.AppConfig{LoginTimeouts: 10})
		_, err := newGate(app, 2).Authenticate(context.Background(), testCreds, true, 0)
		require.Error(t, err)

		var authErr *automation.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, 2, authErr.Attempts)
		assert.ErrorIs(t, err, automation.ErrStepTimeout)
		assert.Equal(t, "AuthError", automation.Kind(err))
		assert.True(t, automation.IsFatal(err), "auth failures abort the run")
	})

	t.Run("argument overrides configured attempts", func(t *testing.T) {
		app := fake.NewApp(fake.AppConfig{LoginTimeouts: 3})
		_, err := newGate(app, 1).Authenticate(context.Background(), testCreds, true, 4)
		require.NoError(t, err)
		assert.Equal(t, 4, app.Launches())
	})

	t.Run("missing login form is not retried", func(t *testing.T) {
		app := fake.NewApp(fake.AppConfig{LoginMissing: true})
		_, err := newGate(app, 5).Authenticate(context.Background(), testCreds, true, 0)

		var authErr *automation.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, 1, authErr.Attempts)
		assert.ErrorIs(t, err, automation.ErrElementNotFound)
		assert.Equal(t, 1, app.Launches())
	})

	t.Run("launch failure", func(t *testing.T) {
		app := fake.NewApp(fake.AppConfig{})
		gate := automation.NewGate(&fake.Launcher{App: app, Err: errors.New("chrome not found")},
			automation.GateConfig{MaxAttempts: 3, RetryInterval: time.Millisecond}, zap.NewNop())

		_, err := gate.Authenticate(context.Background(), testCreds, true, 0)
		var authErr *automation.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, 1, authErr.Attempts)
		assert.ErrorIs(t, err, automation.ErrSurfaceFault)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		app := fake.NewApp(fake.AppConfig{})
		_, err := newGate(app, 3).Authenticate(ctx, testCreds, true, 0)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, app.Launches())
	})
}

func TestCredentials_StringRedactsPassword(t *testing.T) {
	s := testCreds.String()
	assert.Contains(t, s, "radiologist")
	assert.NotContains(t, s, "s3cret")
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	app := fake.NewApp(fake.AppConfig{})
	surface, err := (&fake.Launcher{App: app}).Launch(context.Background(), automation.LaunchOptions{})
	require.NoError(t, err)

	session := automation.NewSession(surface, true)
	require.NoError(t, session.Close(context.Background()))
	require.NoError(t, session.Close(context.Background()))
	assert.Equal(t, 1, app.Closed())
}
