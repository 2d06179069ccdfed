package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the full on-disk configuration.
//
// The file may be JSON or YAML (by extension); YAML is coerced to JSON so
// both formats go through the same strict decoder. Unknown fields are
// rejected so typos are caught at load time instead of silently ignored.
//
// All durations are Go duration strings (e.g. "30s", "5m", "1h").
type Config struct {
	Logging       LoggingConfig       `json:"logging"`
	Preconditions PreconditionsConfig `json:"preconditions"`
	Brew          BrewConfig          `json:"brew"`
	Notify        NotifyConfig        `json:"notify"`
	History       HistoryConfig       `json:"history,omitempty"`
	Schedule      ScheduleConfig      `json:"schedule,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// PreconditionsConfig gates whether a maintenance run may start.
//
// Power policy: require_ac_power demands mains power and ignores
// min_battery_percent. When require_ac_power is false and
// min_battery_percent > 0, a sufficiently charged battery also satisfies
// the gate. With both unset the power gate is always satisfied.
type PreconditionsConfig struct {
	// Network is the required network identity (Wi-Fi SSID).
	// Empty means any network is acceptable.
	Network string `json:"network,omitempty"`

	// WifiInterface overrides the interface probed for the SSID
	// (default "en0" on darwin; ignored on linux).
	WifiInterface string `json:"wifi_interface,omitempty"`

	RequireACPower    bool `json:"require_ac_power"`
	MinBatteryPercent int  `json:"min_battery_percent,omitempty"`

	// MaxAttempts polls before giving up (default 3).
	MaxAttempts int `json:"max_attempts,omitempty"`
	// RetryDelay between polls (default "5m").
	RetryDelay string `json:"retry_delay,omitempty"`
}

type BrewConfig struct {
	// Path to the brew binary (default "brew", resolved via PATH).
	Path string `json:"path,omitempty"`
	// StepTimeout bounds each individual maintenance step (default "30m").
	StepTimeout string `json:"step_timeout,omitempty"`
	// Casks is a pointer so "omitted" (default true) is distinguishable
	// from an explicit false.
	Casks *bool `json:"casks,omitempty"`
}

type NotifyConfig struct {
	// SendTimeout bounds each channel's delivery attempt (default "30s").
	SendTimeout string `json:"send_timeout,omitempty"`

	Telegram TelegramConfig `json:"telegram"`
	Email    EmailConfig    `json:"email"`
}

type TelegramConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty"`
	ChatID     int64  `json:"chat_id,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type EmailConfig struct {
	Enabled  bool     `json:"enabled"`
	Host     string   `json:"host,omitempty"`
	Port     int      `json:"port,omitempty"`
	From     string   `json:"from,omitempty"`
	To       []string `json:"to,omitempty"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"`
}

// HistoryConfig controls the optional run-history store.
//
// Driver values:
//   - "" or "none": history disabled
//   - "sqlite": SQLite database file
type HistoryConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	Keep        int    `json:"keep,omitempty"`         // runs retained (default 90)
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type ScheduleConfig struct {
	Enabled  bool   `json:"enabled"`
	Spec     string `json:"spec,omitempty"` // 5-field cron spec or @descriptor
	Timezone string `json:"timezone,omitempty"`
}

// Load reads, decodes, and validates the config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, b)
}

// Parse decodes and validates raw config bytes. path is only used for
// format detection and error context.
func Parse(path string, data []byte) (*Config, error) {
	jb, format, err := asJSON(path, data)
	if err != nil {
		return nil, fmt.Errorf("config %s (%s): %w", path, format, err)
	}

	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config %s (%s): %w", path, format, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks field-level consistency. It does not reach out to the
// network or filesystem.
func (c *Config) Validate() error {
	if _, err := durationField("preconditions.retry_delay", c.Preconditions.RetryDelay); err != nil {
		return err
	}
	if c.Preconditions.MaxAttempts < 0 {
		return fmt.Errorf("preconditions.max_attempts must be >= 0")
	}
	if p := c.Preconditions.MinBatteryPercent; p < 0 || p > 100 {
		return fmt.Errorf("preconditions.min_battery_percent must be within 0..100")
	}
	if _, err := durationField("brew.step_timeout", c.Brew.StepTimeout); err != nil {
		return err
	}
	if _, err := durationField("notify.send_timeout", c.Notify.SendTimeout); err != nil {
		return err
	}
	if _, err := durationField("history.busy_timeout", c.History.BusyTimeout); err != nil {
		return err
	}

	if c.Notify.Telegram.Enabled {
		if strings.TrimSpace(c.Notify.Telegram.Token) == "" {
			return fmt.Errorf("notify.telegram.token is required when the channel is enabled")
		}
		if c.Notify.Telegram.ChatID == 0 {
			return fmt.Errorf("notify.telegram.chat_id is required when the channel is enabled")
		}
	}
	if c.Notify.Email.Enabled {
		if strings.TrimSpace(c.Notify.Email.Host) == "" {
			return fmt.Errorf("notify.email.host is required when the channel is enabled")
		}
		if strings.TrimSpace(c.Notify.Email.From) == "" {
			return fmt.Errorf("notify.email.from is required when the channel is enabled")
		}
		if len(c.Notify.Email.To) == 0 {
			return fmt.Errorf("notify.email.to needs at least one recipient when the channel is enabled")
		}
	}

	switch d := strings.TrimSpace(c.History.Driver); d {
	case "", "none", "sqlite":
	default:
		return fmt.Errorf("history.driver %q is not supported (use \"sqlite\" or \"none\")", d)
	}
	if c.History.Driver == "sqlite" && strings.TrimSpace(c.History.Path) == "" {
		return fmt.Errorf("history.path is required for the sqlite driver")
	}

	if c.Schedule.Enabled && strings.TrimSpace(c.Schedule.Spec) == "" {
		return fmt.Errorf("schedule.spec is required when schedule is enabled")
	}
	return nil
}

// ---- parsed accessors (defaults applied here, not during decode) ----

func (p PreconditionsConfig) MaxAttemptsOr(def int) int {
	if p.MaxAttempts <= 0 {
		return def
	}
	return p.MaxAttempts
}

func (p PreconditionsConfig) RetryDelayOr(def time.Duration) time.Duration {
	d, err := durationOr("preconditions.retry_delay", p.RetryDelay, def)
	if err != nil {
		return def
	}
	return d
}

func (b BrewConfig) BinOr(def string) string {
	if s := strings.TrimSpace(b.Path); s != "" {
		return s
	}
	return def
}

func (b BrewConfig) StepTimeoutOr(def time.Duration) time.Duration {
	d, err := durationOr("brew.step_timeout", b.StepTimeout, def)
	if err != nil {
		return def
	}
	return d
}

func (b BrewConfig) CasksEnabled() bool {
	if b.Casks == nil {
		return true
	}
	return *b.Casks
}

func (n NotifyConfig) SendTimeoutOr(def time.Duration) time.Duration {
	d, err := durationOr("notify.send_timeout", n.SendTimeout, def)
	if err != nil {
		return def
	}
	return d
}

func (h HistoryConfig) KeepOr(def int) int {
	if h.Keep <= 0 {
		return def
	}
	return h.Keep
}

func (h HistoryConfig) BusyTimeoutDuration() time.Duration {
	d, err := durationField("history.busy_timeout", h.BusyTimeout)
	if err != nil {
		return 0
	}
	return d
}

// durationField parses an optional Go duration string. Empty means unset
// and yields zero; negative values are rejected. path names the field in
// error messages.
func durationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative durations are not allowed", path)
	}
	return d, nil
}

// durationOr is durationField with a fallback for unset fields.
func durationOr(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := durationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
