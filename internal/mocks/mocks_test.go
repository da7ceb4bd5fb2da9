// internal/mocks/mocks_test.go
package mocks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/emedauto/internal/automation"
	"github.com/xkilldash9x/emedauto/internal/mocks"
)

// The mocks are consumed by the automation core exactly like a real surface.
func TestMockSurface_DrivesGuards(t *testing.T) {
	ctx := context.Background()
	q := automation.RadioButton("Absent")
	c := automation.Control{ID: "n1", Query: q}

	s := new(mocks.MockSurface)
	s.On("Locate", mock.Anything, q).Return(c, nil)
	s.On("IsSelected", mock.Anything, c).Return(false, nil).Once()
	s.On("Click", mock.Anything, c).Return(nil).Once()

	clicked, err := automation.EnsureSelected(ctx, s, q)
	require.NoError(t, err)
	assert.True(t, clicked)
	s.AssertExpectations(t)
}

func TestMockLauncher_FeedsGate(t *testing.T) {
	l := new(mocks.MockLauncher)
	l.On("Launch", mock.Anything, mock.AnythingOfType("automation.LaunchOptions")).
		Return(nil, errors.New("no chrome"))

	gate := automation.NewGate(l, automation.GateConfig{BaseURL: "https://x.test", LoginTimeout: time.Second}, zap.NewNop())
	_, err := gate.Authenticate(context.Background(), automation.Credentials{}, true, 1)

	var authErr *automation.AuthError
	require.ErrorAs(t, err, &authErr)
	l.AssertNumberOfCalls(t, "Launch", 1)
}
