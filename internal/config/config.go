package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/bnema/presence-board/internal/roster"
	"github.com/bnema/presence-board/internal/security"
)

type Config struct {
	Roster        RosterConfig       `mapstructure:"roster"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Display       DisplayConfig      `mapstructure:"display"`
	Calendars     CalendarConfig     `mapstructure:"calendars"`

	path string
}

type RosterConfig struct {
	SpreadsheetID     string        `mapstructure:"spreadsheet_id"`
	Range             string        `mapstructure:"range"`
	Members           []string      `mapstructure:"members"`
	PresentToken      string        `mapstructure:"present_token"`
	AbsentToken       string        `mapstructure:"absent_token"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	HighlightDuration time.Duration `mapstructure:"highlight_duration"`
	Debounce          time.Duration `mapstructure:"debounce"`
}

type NotificationConfig struct {
	Enabled       bool  `mapstructure:"enabled"`
	RemoteChanges bool  `mapstructure:"remote_changes"`
	ReminderTimes []int `mapstructure:"reminder_times"`
}

type DisplayConfig struct {
	Theme            string `mapstructure:"theme"`
	ShowEndTime      bool   `mapstructure:"show_end_time"`
	MaxTooltipEvents int    `mapstructure:"max_tooltip_events"`
}

type CalendarConfig struct {
	PrimaryOnly bool     `mapstructure:"primary_only"`
	CalendarIDs []string `mapstructure:"calendar_ids"`
}

func defaultConfig() Config {
	members := make([]string, len(roster.DefaultMembers))
	for i, m := range roster.DefaultMembers {
		members[i] = string(m)
	}
	return Config{
		Roster: RosterConfig{
			Range:             "Sheet1!A1:F2",
			Members:           members,
			PresentToken:      "TRUE",
			AbsentToken:       "FALSE",
			PollInterval:      5 * time.Second,
			HighlightDuration: 1500 * time.Millisecond,
			Debounce:          time.Second,
		},
		Notifications: NotificationConfig{
			Enabled:       true,
			RemoteChanges: true,
			ReminderTimes: []int{15, 5},
		},
		Display: DisplayConfig{
			Theme:            "light",
			ShowEndTime:      true,
			MaxTooltipEvents: 10,
		},
		Calendars: CalendarConfig{
			PrimaryOnly: true,
			CalendarIDs: []string{},
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := defaultConfig()
	return &cfg
}

func newViper(configPath string) (*viper.Viper, string, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetConfigName("config")

	if configPath == "" {
		configDir, err := getDefaultConfigDir()
		if err != nil {
			return nil, "", fmt.Errorf("failed to get config directory: %w", err)
		}
		configPath = configDir
	}

	v.AddConfigPath(configPath)
	v.SetEnvPrefix("PRESENCE_BOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v, configPath, nil
}

// Load reads config.toml from configPath (or the default directory), creating
// it with defaults when missing.
func Load(configPath string) (*Config, error) {
	v, dir, err := newViper(configPath)
	if err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := createDefaultConfig(dir); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		if err := v.ReadInConfig(); err != nil {
			// Fall back to defaults; the file will be picked up next run.
			return unmarshal(v)
		}
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.path = v.ConfigFileUsed()
	return &config, nil
}

// Watch calls onChange with the reloaded configuration every time the file
// changes on disk. Invalid files are reported through onError and ignored.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v, _, err := newViper(configPath)
	if err != nil {
		return err
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshal(v)
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// Path is the file the configuration was read from, empty for defaults.
func (c *Config) Path() string {
	return c.path
}

// RosterMembers converts the configured names to roster members.
func (c *Config) RosterMembers() []roster.Member {
	members := make([]roster.Member, len(c.Roster.Members))
	for i, name := range c.Roster.Members {
		members[i] = roster.Member(strings.TrimSpace(name))
	}
	return members
}

// Codec builds the sheet codec for the configured members and tokens.
func (c *Config) Codec() roster.Codec {
	codec := roster.NewCodec(c.RosterMembers())
	codec.PresentToken = c.Roster.PresentToken
	codec.AbsentToken = c.Roster.AbsentToken
	return codec
}

// Validate checks the settings every command relies on.
func (c *Config) Validate() error {
	r := c.Roster
	if err := roster.ValidateMembers(c.RosterMembers()); err != nil {
		return security.NewConfigError("roster.members", "", err.Error()).WithCause(err)
	}
	if strings.TrimSpace(r.Range) == "" {
		return security.NewConfigError("roster.range", "", "range is required")
	}
	if r.PresentToken == "" {
		return security.NewConfigError("roster.present_token", "", "token cannot be empty")
	}
	if r.PresentToken == r.AbsentToken {
		return security.NewConfigError("roster.absent_token", r.AbsentToken, "must differ from present_token")
	}
	for field, d := range map[string]time.Duration{
		"roster.poll_interval":      r.PollInterval,
		"roster.highlight_duration": r.HighlightDuration,
		"roster.debounce":           r.Debounce,
	} {
		if d <= 0 {
			return security.NewConfigError(field, d.String(), "must be positive")
		}
	}
	if c.Display.MaxTooltipEvents < 0 {
		return security.NewConfigError("display.max_tooltip_events", fmt.Sprint(c.Display.MaxTooltipEvents), "cannot be negative")
	}
	return nil
}

// ValidateRoster additionally requires a spreadsheet to sync with.
func (c *Config) ValidateRoster() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Roster.SpreadsheetID) == "" {
		return security.NewConfigError("roster.spreadsheet_id", "", "set the shared spreadsheet ID in config.toml")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := defaultConfig()

	// Roster
	v.SetDefault("roster.spreadsheet_id", d.Roster.SpreadsheetID)
	v.SetDefault("roster.range", d.Roster.Range)
	v.SetDefault("roster.members", d.Roster.Members)
	v.SetDefault("roster.present_token", d.Roster.PresentToken)
	v.SetDefault("roster.absent_token", d.Roster.AbsentToken)
	v.SetDefault("roster.poll_interval", d.Roster.PollInterval)
	v.SetDefault("roster.highlight_duration", d.Roster.HighlightDuration)
	v.SetDefault("roster.debounce", d.Roster.Debounce)

	// Notifications
	v.SetDefault("notifications.enabled", d.Notifications.Enabled)
	v.SetDefault("notifications.remote_changes", d.Notifications.RemoteChanges)
	v.SetDefault("notifications.reminder_times", d.Notifications.ReminderTimes)

	// Display
	v.SetDefault("display.theme", d.Display.Theme)
	v.SetDefault("display.show_end_time", d.Display.ShowEndTime)
	v.SetDefault("display.max_tooltip_events", d.Display.MaxTooltipEvents)

	// Calendars
	v.SetDefault("calendars.primary_only", d.Calendars.PrimaryOnly)
	v.SetDefault("calendars.calendar_ids", d.Calendars.CalendarIDs)
}

func createDefaultConfig(configPath string) error {
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configPath, "config.toml")
	if _, err := os.Stat(configFile); err == nil {
		return nil
	}

	configContent := `# presence-board configuration

[roster]
spreadsheet_id = ""          # ID of the shared sheet (from its URL)
range = "Sheet1!A1:F2"       # row 1: presence, row 2: comments
# members = ["..."]          # overrides the built-in roster, in column order
present_token = "TRUE"
absent_token = "FALSE"
poll_interval = "5s"
highlight_duration = "1.5s"
debounce = "1s"

[notifications]
enabled = true
remote_changes = true        # notify when someone else updates the board
reminder_times = [15, 5]     # minutes before event

[display]
theme = "light"              # light, dark or contrast
show_end_time = true
max_tooltip_events = 10

[calendars]
primary_only = true  # set to false to use calendar_ids
calendar_ids = []    # specific calendar IDs to watch
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func getDefaultConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "presence-board"), nil
}

func GetDefaultConfigDir() (string, error) {
	return getDefaultConfigDir()
}
