package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DiscordToken  string `env:"DISCORD_TOKEN,required"`
	CommandPrefix string `env:"COMMAND_PREFIX" envDefault:"$shh_"`
	DefaultEmoji  string `env:"DEFAULT_EMOJI" envDefault:"🎤"`

	Storage Storage

	HandlerTimeout time.Duration `env:"HANDLER_TIMEOUT" envDefault:"30s"`
	APIRateLimit   float64       `env:"API_RATE_LIMIT" envDefault:"5"`
}

// Storage is the part of the config the admin CLI needs as well.
type Storage struct {
	Driver           string        `env:"STORAGE_DRIVER" envDefault:"file"`
	Path             string        `env:"STORAGE_PATH" envDefault:"datastore.json"`
	DatabaseURL      string        `env:"DATABASE_URL"`
	AutoSaveInterval time.Duration `env:"AUTOSAVE_INTERVAL" envDefault:"10s"`
	BackupCount      int           `env:"BACKUP_COUNT" envDefault:"3"`
}

// New loads .env when present and reads the config from the environment.
func New() (*Config, error) {
	loadDotEnv()
	return FromEnv()
}

// NewStorage is New for tools that only touch the store.
func NewStorage() (*Storage, error) {
	loadDotEnv()
	var s Storage
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if errs := s.validate(); len(errs) > 0 {
		return nil, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return &s, nil
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] No .env file found, falling back to system environment variables")
	}
}

// FromEnv reads the config from the process environment only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DiscordToken) == "" {
		errs = append(errs, errors.New("DISCORD_TOKEN is empty"))
	}
	if c.CommandPrefix == "" {
		errs = append(errs, errors.New("COMMAND_PREFIX is empty"))
	}
	if c.DefaultEmoji == "" {
		errs = append(errs, errors.New("DEFAULT_EMOJI is empty"))
	}
	errs = append(errs, c.Storage.validate()...)
	if c.HandlerTimeout <= 0 {
		errs = append(errs, errors.New("HANDLER_TIMEOUT must be positive"))
	}
	if c.APIRateLimit <= 0 {
		errs = append(errs, errors.New("API_RATE_LIMIT must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func (s *Storage) validate() []error {
	var errs []error
	switch s.Driver {
	case "file":
		if s.Path == "" {
			errs = append(errs, errors.New("STORAGE_PATH is empty"))
		}
	case "postgres":
		if s.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER %q is not one of file, postgres", s.Driver))
	}
	if s.AutoSaveInterval < 0 {
		errs = append(errs, errors.New("AUTOSAVE_INTERVAL must not be negative"))
	}
	if s.BackupCount < 0 {
		errs = append(errs, errors.New("BACKUP_COUNT must not be negative"))
	}
	return errs
}

// BotToken returns the token in the form the gateway expects.
func (c *Config) BotToken() string {
	if strings.HasPrefix(c.DiscordToken, "Bot ") {
		return c.DiscordToken
	}
	return "Bot " + c.DiscordToken
}
