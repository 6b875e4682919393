package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the reminder engine
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Channels  ChannelsConfig  `mapstructure:"channels"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address      string   `mapstructure:"address"`
	Port         int      `mapstructure:"port"`
	MetricsPort  int      `mapstructure:"metrics_port"`
	ReadTimeout  int      `mapstructure:"read_timeout"`
	WriteTimeout int      `mapstructure:"write_timeout"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// ChannelsConfig holds notification channel settings. A channel with
// missing credentials is treated as not configured, never as an error.
type ChannelsConfig struct {
	SMS      SMSConfig      `mapstructure:"sms"`
	Email    EmailConfig    `mapstructure:"email"`
	Calendar CalendarConfig `mapstructure:"calendar"`
}

// SMSConfig holds Twilio settings
type SMSConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	FromNumber string `mapstructure:"from_number"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

// Configured reports whether the SMS channel has credentials
func (c SMSConfig) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// EmailConfig holds SMTP settings
type EmailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Configured reports whether the email channel has credentials
func (c EmailConfig) Configured() bool {
	return c.Host != "" && c.Username != "" && c.Password != ""
}

// CalendarConfig holds Google Calendar OAuth settings
type CalendarConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
	Timezone     string `mapstructure:"timezone"`
}

// Configured reports whether the calendar channel has credentials
func (c CalendarConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// SchedulerConfig holds tick settings. DigestTime is "HH:MM" local
// time, DedupWindowMin the minimum gap in minutes between repeat
// reminders for one medication, MaxConcurrent the dispatch workers per
// tick and DispatchPerSec the rate limit on outbound sends.
type SchedulerConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	DigestTime        string `mapstructure:"digest_time"`
	DedupWindowMin    int    `mapstructure:"dedup_window_min"`
	MaxConcurrent     int    `mapstructure:"max_concurrent"`
	DispatchPerSec    int    `mapstructure:"dispatch_per_sec"`
	ChannelTimeoutSec int    `mapstructure:"channel_timeout_sec"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.Set("storage.data_dir", dataDir)
	v.Set("storage.sqlite_path", filepath.Join(dataDir, "medremind.db"))

	if configPath == "" {
		configPath = filepath.Join(dataDir, "medremind.yaml")
	}

	// If config file exists, load it
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Environment variables (MEDREMIND_SERVER_PORT, MEDREMIND_CHANNELS_SMS_AUTH_TOKEN, etc.)
	v.SetEnvPrefix("MEDREMIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.allow_origins", []string{"*"})

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.digest_time", "08:00")
	v.SetDefault("scheduler.dedup_window_min", 30)
	v.SetDefault("scheduler.max_concurrent", 8)
	v.SetDefault("scheduler.dispatch_per_sec", 10)
	v.SetDefault("scheduler.channel_timeout_sec", 10)

	// Channel defaults
	v.SetDefault("channels.sms.timeout_sec", 10)
	v.SetDefault("channels.email.port", 587)
	v.SetDefault("channels.calendar.redirect_url", "http://localhost:8080/auth/calendar/callback")
	v.SetDefault("channels.calendar.timezone", "UTC")
}

func getDefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "medremind")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "medremind")
}

// loadEnvOverrides loads credential env vars that Viper's AutomaticEnv
// misses for nested keys that never appear in the config file
func loadEnvOverrides(cfg *Config) {
	getEnv := func(key, fallback string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return fallback
	}

	cfg.Channels.SMS.AccountSID = getEnv("MEDREMIND_CHANNELS_SMS_ACCOUNT_SID", cfg.Channels.SMS.AccountSID)
	cfg.Channels.SMS.AuthToken = getEnv("MEDREMIND_CHANNELS_SMS_AUTH_TOKEN", cfg.Channels.SMS.AuthToken)
	cfg.Channels.SMS.FromNumber = getEnv("MEDREMIND_CHANNELS_SMS_FROM_NUMBER", cfg.Channels.SMS.FromNumber)

	cfg.Channels.Email.Host = getEnv("MEDREMIND_CHANNELS_EMAIL_HOST", cfg.Channels.Email.Host)
	cfg.Channels.Email.Username = getEnv("MEDREMIND_CHANNELS_EMAIL_USERNAME", cfg.Channels.Email.Username)
	cfg.Channels.Email.Password = getEnv("MEDREMIND_CHANNELS_EMAIL_PASSWORD", cfg.Channels.Email.Password)
	cfg.Channels.Email.From = getEnv("MEDREMIND_CHANNELS_EMAIL_FROM", cfg.Channels.Email.From)
	if port := os.Getenv("MEDREMIND_CHANNELS_EMAIL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Channels.Email.Port = p
		}
	}

	cfg.Channels.Calendar.ClientID = getEnv("MEDREMIND_CHANNELS_CALENDAR_CLIENT_ID", cfg.Channels.Calendar.ClientID)
	cfg.Channels.Calendar.ClientSecret = getEnv("MEDREMIND_CHANNELS_CALENDAR_CLIENT_SECRET", cfg.Channels.Calendar.ClientSecret)

	cfg.Server.Address = getEnv("MEDREMIND_SERVER_ADDRESS", cfg.Server.Address)
	if port := os.Getenv("MEDREMIND_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	cfg.Storage.DataDir = getEnv("MEDREMIND_STORAGE_DATA_DIR", cfg.Storage.DataDir)
}

func validate(cfg *Config) error {
	if cfg.Scheduler.DedupWindowMin <= 0 {
		return fmt.Errorf("scheduler.dedup_window_min must be positive")
	}
	if cfg.Scheduler.MaxConcurrent <= 0 {
		return fmt.Errorf("scheduler.max_concurrent must be positive")
	}
	if _, _, err := parseClock(cfg.Scheduler.DigestTime); err != nil {
		return fmt.Errorf("scheduler.digest_time: %w", err)
	}
	if cfg.Email().From == "" {
		cfg.Channels.Email.From = cfg.Channels.Email.Username
	}
	return nil
}

func parseClock(s string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

// DigestClock returns the parsed daily digest time
func (c *Config) DigestClock() (hour, minute int) {
	hour, minute, _ = parseClock(c.Scheduler.DigestTime)
	return hour, minute
}

// SMS returns the SMS channel settings
func (c *Config) SMS() SMSConfig { return c.Channels.SMS }

// Email returns the email channel settings
func (c *Config) Email() EmailConfig { return c.Channels.Email }

// Calendar returns the calendar channel settings
func (c *Config) Calendar() CalendarConfig { return c.Channels.Calendar }
