// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultBaseURL is the eMedical login page.
const DefaultBaseURL = "https://www.emedical.immi.gov.au/eMedUI/eMedical"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	EMedical() EMedicalConfig
	Browser() BrowserConfig
	Automation() AutomationConfig
	Run() RunConfig

	// Setters used by CLI flag overrides.
	SetCredentials(userID, password string)
	SetBrowserHeadless(bool)
	SetMaxLoginAttempts(int)
	SetClosePolicy(string)
	SetSummaryPath(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	EMedicalCfg   EMedicalConfig   `mapstructure:"emedical" yaml:"emedical"`
	BrowserCfg    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	AutomationCfg AutomationConfig `mapstructure:"automation" yaml:"automation"`
	RunCfg        RunConfig        `mapstructure:"run" yaml:"run"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig         { return c.LoggerCfg }
func (c *Config) EMedical() EMedicalConfig     { return c.EMedicalCfg }
func (c *Config) Browser() BrowserConfig       { return c.BrowserCfg }
func (c *Config) Automation() AutomationConfig { return c.AutomationCfg }
func (c *Config) Run() RunConfig               { return c.RunCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetCredentials(userID, password string) {
	c.EMedicalCfg.UserID = userID
	c.EMedicalCfg.Password = password
}
func (c *Config) SetBrowserHeadless(b bool)  { c.BrowserCfg.Headless = b }
func (c *Config) SetMaxLoginAttempts(n int)  { c.AutomationCfg.MaxLoginAttempts = n }
func (c *Config) SetClosePolicy(p string)    { c.RunCfg.ClosePolicy = p }
func (c *Config) SetSummaryPath(path string) { c.RunCfg.SummaryPath = path }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// EMedicalConfig locates the remote application and the operator's login.
// The password is best supplied through EMEDAUTO_EMEDICAL_PASSWORD.
type EMedicalConfig struct {
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	UserID   string `mapstructure:"user_id" yaml:"user_id"`
	Password string `mapstructure:"password" yaml:"password"`
}

// BrowserConfig holds settings for the Chrome instance.
type BrowserConfig struct {
	Headless     bool     `mapstructure:"headless" yaml:"headless"`
	ExecPath     string   `mapstructure:"exec_path" yaml:"exec_path"`
	Args         []string `mapstructure:"args" yaml:"args"`
	WindowWidth  int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int      `mapstructure:"window_height" yaml:"window_height"`
	Incognito    bool     `mapstructure:"incognito" yaml:"incognito"`
}

// AutomationConfig tunes waits, retries and pacing of the form sequence.
type AutomationConfig struct {
	StepTimeout        time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
	LoginTimeout       time.Duration `mapstructure:"login_timeout" yaml:"login_timeout"`
	MaxLoginAttempts   int           `mapstructure:"max_login_attempts" yaml:"max_login_attempts"`
	LoginRetryInterval time.Duration `mapstructure:"login_retry_interval" yaml:"login_retry_interval"`
	SettleDelay        time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	PollInterval       time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// ActionRate caps surface actions per second. Zero is unlimited.
	ActionRate float64 `mapstructure:"action_rate" yaml:"action_rate"`
}

// RunConfig holds per-run behavior.
type RunConfig struct {
	// ClosePolicy is "always", "never" or "headless".
	ClosePolicy string `mapstructure:"close_policy" yaml:"close_policy"`
	SummaryPath string `mapstructure:"summary_path" yaml:"summary_path"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "emedauto")
	v.SetDefault("logger.log_file", "log.txt")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", false)

	// -- eMedical --
	v.SetDefault("emedical.base_url", DefaultBaseURL)
	v.SetDefault("emedical.user_id", "")
	v.SetDefault("emedical.password", "")

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 960)
	v.SetDefault("browser.incognito", true)

	// -- Automation --
	v.SetDefault("automation.step_timeout", "10s")
	v.SetDefault("automation.login_timeout", "10s")
	v.SetDefault("automation.max_login_attempts", 1)
	v.SetDefault("automation.login_retry_interval", "2s")
	v.SetDefault("automation.settle_delay", "1s")
	v.SetDefault("automation.poll_interval", "100ms")
	v.SetDefault("automation.action_rate", 0.0)

	// -- Run --
	v.SetDefault("run.close_policy", "headless")
	v.SetDefault("run.summary_path", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Credentials are commonly provided through the environment only.
	v.BindEnv("emedical.user_id", "EMEDAUTO_EMEDICAL_USER_ID")
	v.BindEnv("emedical.password", "EMEDAUTO_EMEDICAL_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
// Credentials are checked by the run command since other commands do not need them.
func (c *Config) Validate() error {
	u, err := url.Parse(c.EMedicalCfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("emedical.base_url must be an absolute URL, got %q", c.EMedicalCfg.BaseURL)
	}
	if err := c.AutomationCfg.Validate(); err != nil {
		return fmt.Errorf("automation configuration invalid: %w", err)
	}
	switch strings.ToLower(c.RunCfg.ClosePolicy) {
	case "always", "never", "headless":
	default:
		return fmt.Errorf("run.close_policy must be one of always, never, headless; got %q", c.RunCfg.ClosePolicy)
	}
	if c.BrowserCfg.WindowWidth < 0 || c.BrowserCfg.WindowHeight < 0 {
		return fmt.Errorf("browser window size cannot be negative")
	}
	return nil
}

// Validate checks the automation timings.
func (a *AutomationConfig) Validate() error {
	if a.StepTimeout <= 0 {
		return fmt.Errorf("step_timeout must be a positive duration")
	}
	if a.LoginTimeout <= 0 {
		return fmt.Errorf("login_timeout must be a positive duration")
	}
	if a.MaxLoginAttempts < 1 {
		return fmt.Errorf("max_login_attempts must be at least 1")
	}
	if a.LoginRetryInterval < 0 || a.SettleDelay < 0 {
		return fmt.Errorf("login_retry_interval and settle_delay cannot be negative")
	}
	if a.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be a positive duration")
	}
	if a.ActionRate < 0 {
		return fmt.Errorf("action_rate cannot be negative")
	}
	return nil
}

// Redacted returns a copy of c that is safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	out.BrowserCfg.Args = append([]string(nil), c.BrowserCfg.Args...)
	if out.EMedicalCfg.Password != "" {
		out.EMedicalCfg.Password = "[REDACTED]"
	}
	return &out
}
