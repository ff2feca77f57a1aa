package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Discord  DiscordConfig  `yaml:"discord"`
	GitHub   GitHubConfig   `yaml:"github"`
	Sync     SyncConfig     `yaml:"sync"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Export   ExportConfig   `yaml:"export"`
	LogLevel string         `yaml:"log_level"`
}

type DiscordConfig struct {
	BaseURL  string        `yaml:"base_url"`
	BotToken string        `yaml:"bot_token"`
	GuildID  string        `yaml:"guild_id"`
	Timeout  time.Duration `yaml:"timeout"`
}

type GitHubConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Token         string        `yaml:"token"`
	Repo          string        `yaml:"repo"`
	Branch        string        `yaml:"branch"`
	Path          string        `yaml:"path"`
	CommitMessage string        `yaml:"commit_message"`
	Timeout       time.Duration `yaml:"timeout"`
}

// OwnerAndName splits Repo ("owner/name").
func (g GitHubConfig) OwnerAndName() (string, string, error) {
	owner, name, ok := strings.Cut(g.Repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("repo %q is not in owner/name form", g.Repo)
	}
	return owner, name, nil
}

type SyncConfig struct {
	// Interval repeats the sync; zero runs it once. Cron wins when both are set.
	Interval time.Duration `yaml:"interval"`
	Cron     string        `yaml:"cron"`
	Timeout  time.Duration `yaml:"timeout"`
	Timezone string        `yaml:"timezone"`
}

// Location resolves Timezone, the zone that decides what "today" is.
func (s SyncConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

func (r RabbitMQConfig) Enabled() bool {
	return r.URL != ""
}

type ExportConfig struct {
	ICSPath string `yaml:"ics_path"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return Parse(data)
}

// Parse expands ${VAR} references against the environment, decodes the YAML
// and applies defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Discord.BaseURL == "" {
		c.Discord.BaseURL = "https://discord.com/api/v9"
	}
	if c.Discord.Timeout == 0 {
		c.Discord.Timeout = 10 * time.Second
	}
	if c.GitHub.Branch == "" {
		c.GitHub.Branch = "main"
	}
	if c.GitHub.Path == "" {
		c.GitHub.Path = "src/content/post/events.md"
	}
	if c.GitHub.CommitMessage == "" {
		c.GitHub.CommitMessage = "Update events"
	}
	if c.GitHub.Timeout == 0 {
		c.GitHub.Timeout = 10 * time.Second
	}
	if c.Sync.Timeout == 0 {
		c.Sync.Timeout = 2 * time.Minute
	}
	if c.Sync.Timezone == "" {
		c.Sync.Timezone = "UTC"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "events_syncer"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "events"
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = "site_events"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Discord.BotToken == "" {
		errs = append(errs, errors.New("discord.bot_token is required"))
	}
	if c.Discord.GuildID == "" {
		errs = append(errs, errors.New("discord.guild_id is required"))
	}
	if c.GitHub.Token == "" {
		errs = append(errs, errors.New("github.token is required"))
	}
	if _, _, err := c.GitHub.OwnerAndName(); err != nil {
		errs = append(errs, fmt.Errorf("github.repo: %w", err))
	}
	if c.Sync.Interval < 0 {
		errs = append(errs, errors.New("sync.interval must not be negative"))
	}
	if _, err := c.Sync.Location(); err != nil {
		errs = append(errs, fmt.Errorf("sync.timezone: %w", err))
	}
	return errors.Join(errs...)
}
