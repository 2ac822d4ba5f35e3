package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// HTTP server
	Server ServerConfig `yaml:"server"`

	// Outbound WhatsApp transport
	Twilio TwilioConfig `yaml:"twilio"`

	// Evaluator / free-chat oracle
	Oracle OracleConfig `yaml:"oracle"`

	// Session persistence
	Store StoreConfig `yaml:"store"`

	// Playbook content
	Content ContentConfig `yaml:"content"`

	// Broadcast slot -> cron expression
	Schedules map[string]string `yaml:"schedules"`

	// Free-chat window
	Chat ChatConfig `yaml:"chat"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// TwilioConfig holds WhatsApp transport credentials
type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	From       string `yaml:"from"`
}

// OracleConfig holds the language-oracle provider settings
type OracleConfig struct {
	Provider  string        `yaml:"provider"` // openai, gemini
	Model     string        `yaml:"model"`
	APIKey    string        `yaml:"api_key"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// StoreConfig selects and configures the session backend
type StoreConfig struct {
	Backend   string          `yaml:"backend"` // redis, firestore, memory
	Redis     RedisConfig     `yaml:"redis"`
	Firestore FirestoreConfig `yaml:"firestore"`

	// DefaultLesson is the lesson assigned to sessions created on
	// first contact.
	DefaultLesson string `yaml:"default_lesson"`
}

// RedisConfig holds redis backend settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
	PoolSize int    `yaml:"pool_size"`
}

// FirestoreConfig holds firestore backend settings
type FirestoreConfig struct {
	Project         string `yaml:"project"`
	CredentialsFile string `yaml:"credentials_file"`
	Prefix          string `yaml:"prefix"`
}

// ContentConfig lists the playbook files to load
type ContentConfig struct {
	Playbooks []string `yaml:"playbooks"`
}

// ChatConfig bounds the daily free-chat window
type ChatConfig struct {
	DailyReplyCap int `yaml:"daily_reply_cap"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	return &cfg, nil
}

// Default returns a configuration with all defaults applied and
// environment credentials picked up. Used by commands that run
// without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Oracle.Provider == "" {
		c.Oracle.Provider = "openai"
	}
	if c.Oracle.MaxTokens == 0 {
		c.Oracle.MaxTokens = 300
	}
	if c.Oracle.Timeout == 0 {
		c.Oracle.Timeout = 30 * time.Second
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "redis"
	}
	if c.Store.Redis.Addr == "" {
		c.Store.Redis.Addr = "localhost:6379"
	}
	if c.Chat.DailyReplyCap == 0 {
		c.Chat.DailyReplyCap = 8
	}
	if c.Schedules == nil {
		c.Schedules = map[string]string{
			"morning": "0 9 * * *",
			"noon":    "0 13 * * *",
			"evening": "0 19 * * *",
		}
	}
}

// applyEnv fills credentials from the environment when the file left
// them blank.
func (c *Config) applyEnv() {
	if c.Twilio.AccountSID == "" {
		c.Twilio.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if c.Twilio.AuthToken == "" {
		c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if c.Twilio.From == "" {
		c.Twilio.From = os.Getenv("TWILIO_WHATSAPP_FROM")
	}
	if c.Oracle.APIKey == "" {
		switch c.Oracle.Provider {
		case "gemini":
			c.Oracle.APIKey = os.Getenv("GOOGLE_API_KEY")
		default:
			c.Oracle.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if c.Store.Firestore.Project == "" {
		c.Store.Firestore.Project = os.Getenv("GCP_PROJECT")
	}
	if c.Store.Firestore.CredentialsFile == "" {
		c.Store.Firestore.CredentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" && c.Store.Redis.Addr == "localhost:6379" {
		c.Store.Redis.Addr = addr
	}
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "redis", "firestore", "memory":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Store.Backend == "firestore" && c.Store.Firestore.Project == "" {
		return fmt.Errorf("firestore backend requires a project")
	}

	switch c.Oracle.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unknown oracle provider %q", c.Oracle.Provider)
	}

	if len(c.Content.Playbooks) == 0 {
		return fmt.Errorf("at least one playbook file must be configured")
	}

	if c.Chat.DailyReplyCap < 0 {
		return fmt.Errorf("daily_reply_cap must not be negative")
	}

	return nil
}
