// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "log.txt", cfg.Logger().LogFile)
	assert.Equal(t, DefaultBaseURL, cfg.EMedical().BaseURL)
	assert.False(t, cfg.Browser().Headless)
	assert.True(t, cfg.Browser().Incognito)
	assert.Equal(t, 10*time.Second, cfg.Automation().StepTimeout)
	assert.Equal(t, 10*time.Second, cfg.Automation().LoginTimeout)
	assert.Equal(t, 1, cfg.Automation().MaxLoginAttempts)
	assert.Equal(t, 2*time.Second, cfg.Automation().LoginRetryInterval)
	assert.Equal(t, time.Second, cfg.Automation().SettleDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.Automation().PollInterval)
	assert.Zero(t, cfg.Automation().ActionRate)
	assert.Equal(t, "headless", cfg.Run().ClosePolicy)

	assert.NoError(t, cfg.Validate(), "defaults must validate")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()

		badURL := *cfg
		badURL.EMedicalCfg.BaseURL = "emedical"
		err := badURL.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "emedical.base_url must be an absolute URL")

		badPolicy := *cfg
		badPolicy.RunCfg.ClosePolicy = "sometimes"
		err = badPolicy.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "run.close_policy")

		upper := *cfg
		upper.RunCfg.ClosePolicy = "ALWAYS"
		assert.NoError(t, upper.Validate())

		badWindow := *cfg
		badWindow.BrowserCfg.WindowWidth = -1
		assert.Error(t, badWindow.Validate())
	})

	t.Run("Automation Validation", func(t *testing.T) {
		valid := NewDefaultConfig().Automation()
		assert.NoError(t, valid.Validate())

		tests := []struct {
			name   string
			mutate func(*AutomationConfig)
			want   string
		}{
			{"step timeout", func(a *AutomationConfig) { a.StepTimeout = 0 }, "step_timeout must be a positive duration"},
			{"login timeout", func(a *AutomationConfig) { a.LoginTimeout = -time.Second }, "login_timeout must be a positive duration"},
			{"attempts", func(a *AutomationConfig) { a.MaxLoginAttempts = 0 }, "max_login_attempts must be at least 1"},
			{"settle", func(a *AutomationConfig) { a.SettleDelay = -1 }, "cannot be negative"},
			{"poll", func(a *AutomationConfig) { a.PollInterval = 0 }, "poll_interval must be a positive duration"},
			{"rate", func(a *AutomationConfig) { a.ActionRate = -2 }, "action_rate cannot be negative"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				a := valid
				tt.mutate(&a)
				err := a.Validate()
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.want)
			})
		}
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
emedical:
  base_url: "https://emedical.example.test/eMedUI/eMedical"
browser:
  headless: true
  args: ["--lang=en-AU"]
automation:
  step_timeout: 20s
  max_login_attempts: 3
run:
  close_policy: never
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "https://emedical.example.test/eMedUI/eMedical", cfg.EMedical().BaseURL)
		assert.True(t, cfg.Browser().Headless)
		assert.Equal(t, []string{"--lang=en-AU"}, cfg.Browser().Args)
		assert.Equal(t, 20*time.Second, cfg.Automation().StepTimeout)
		assert.Equal(t, 3, cfg.Automation().MaxLoginAttempts)
		assert.Equal(t, "never", cfg.Run().ClosePolicy)
		// Check a default value was also loaded
		assert.Equal(t, time.Second, cfg.Automation().SettleDelay)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("automation.max_login_attempts", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "max_login_attempts must be at least 1")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBufferString(`
emedical:
  user_id: from-file
`)))

		t.Setenv("EMEDAUTO_EMEDICAL_USER_ID", "from-env")
		t.Setenv("EMEDAUTO_EMEDICAL_PASSWORD", "s3cret")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.EMedical().UserID)
		assert.Equal(t, "s3cret", cfg.EMedical().Password)
	})
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetCredentials("user", "pw")
	cfg.SetBrowserHeadless(true)
	cfg.SetMaxLoginAttempts(4)
	cfg.SetClosePolicy("always")
	cfg.SetSummaryPath("/tmp/summary.json")

	assert.Equal(t, EMedicalConfig{BaseURL: DefaultBaseURL, UserID: "user", Password: "pw"}, cfg.EMedical())
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 4, cfg.Automation().MaxLoginAttempts)
	assert.Equal(t, RunConfig{ClosePolicy: "always", SummaryPath: "/tmp/summary.json"}, cfg.Run())
}

func TestRedacted(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetCredentials("user", "pw")

	r := cfg.Redacted()
	assert.Equal(t, "[REDACTED]", r.EMedical().Password)
	assert.Equal(t, "user", r.EMedical().UserID)
	assert.Equal(t, "pw", cfg.EMedical().Password, "original must be untouched")

	empty := NewDefaultConfig().Redacted()
	assert.Empty(t, empty.EMedical().Password)
}
