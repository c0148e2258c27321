// Package config loads config.json, creating it with defaults when missing.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-logr/logr"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/condition"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/logging"
)

// DefaultPath is where the server looks for its configuration.
const DefaultPath = "config.json"

// RecommendedExpiration is the shortest token lifetime that does not warn.
const RecommendedExpiration = 7200

type DatabaseSettings struct {
	// Driver is a database/sql driver name: sqlite, sqlite3, mysql or duckdb.
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
	// ConnectionTimeout bounds opening the database, in seconds.
	ConnectionTimeout int `json:"connectionTimeout"`
}

type ConnectionSettings struct {
	Address string `json:"address"`
	// AdminAddress serves the admin router. Empty disables it.
	AdminAddress string `json:"adminAddress"`
}

type PerformanceSettings struct {
	WorkerThreadCount int `json:"workerThreadCount"`
	// QueueCapacity bounds pending requests; 0 means unbounded.
	QueueCapacity int `json:"queueCapacity"`
	// RequestTimeout bounds the database work of one request, in seconds.
	RequestTimeout int `json:"requestTimeout"`
	// LivenessInterval is how often the database is pinged, in seconds.
	LivenessInterval int `json:"livenessInterval"`
}

type UsernameRequirements struct {
	MinLength int `json:"minLength"`
	MaxLength int `json:"maxLength"`
	// AllowedCharacters is a regular expression every character must match.
	AllowedCharacters string `json:"allowedCharacters"`

	allowed *regexp.Regexp
}

// Allows reports whether username satisfies the requirements.
func (u *UsernameRequirements) Allows(username string) bool {
	n := len([]rune(username))
	if n < u.MinLength || n > u.MaxLength {
		return false
	}
	re := u.allowed
	if re == nil {
		// Not validated yet; compile without caching so Allows stays read-only.
		var err error
		if re, err = compileAllowed(u.AllowedCharacters); err != nil {
			return false
		}
	}
	return re.MatchString(username)
}

func compileAllowed(chars string) (*regexp.Regexp, error) {
	if chars == "" {
		return regexp.Compile(`^.*$`)
	}
	return regexp.Compile(`^(?:` + chars + `)*$`)
}

type AuthenticationSettings struct {
	// Expiration is the token lifetime in seconds.
	Expiration           int64                `json:"expiration"`
	UsernameRequirements UsernameRequirements `json:"usernameRequirements"`
}

type RequestSettings struct {
	MaxLoanDays              int `json:"maxLoanDays"`
	MaxUnavailableDatesRange int `json:"maxUnavailableDatesRange"`
}

type LogSettings struct {
	OutputDir string `json:"outputDir"`
	LogLevel  string `json:"logLevel"`
	Format    string `json:"format"`
}

// Config is the content of config.json.
type Config struct {
	DatabaseSettings       DatabaseSettings       `json:"databaseSettings"`
	ConnectionSettings     ConnectionSettings     `json:"connectionSettings"`
	PerformanceSettings    PerformanceSettings    `json:"performanceSettings"`
	AuthenticationSettings AuthenticationSettings `json:"authenticationSettings"`
	RequestSettings        RequestSettings        `json:"requestSettings"`
	LogSettings            LogSettings            `json:"logSettings"`
}

// Default returns the configuration written when no file exists.
func Default() *Config {
	return &Config{
		DatabaseSettings: DatabaseSettings{
			Driver:            db.SQLiteDriver,
			DSN:               "file:api.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
			ConnectionTimeout: 10,
		},
		ConnectionSettings: ConnectionSettings{
			Address:      ":8080",
			AdminAddress: "127.0.0.1:8081",
		},
		PerformanceSettings: PerformanceSettings{
			WorkerThreadCount: 5,
			RequestTimeout:    30,
			LivenessInterval:  10,
		},
		AuthenticationSettings: AuthenticationSettings{
			Expiration: RecommendedExpiration,
			UsernameRequirements: UsernameRequirements{
				MinLength:         3,
				MaxLength:         50,
				AllowedCharacters: `[A-Za-z0-9_.\-]`,
			},
		},
		RequestSettings: RequestSettings{
			MaxLoanDays:              21,
			MaxUnavailableDatesRange: 122,
		},
		LogSettings: LogSettings{
			OutputDir: "logs",
			LogLevel:  "info",
			Format:    "console",
		},
	}
}

// Load reads path. A missing file is created from Default and then used.
// Keys absent from the file keep their default values.
func Load(path string, log logr.Logger) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, err
		}
		log.Info("Created default configuration", "path", path)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	for _, w := range cfg.Warnings() {
		log.Info("Configuration warning", "warning", w)
	}
	return cfg, nil
}

// Save writes the configuration as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "\t")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks every setting and reports the first invalid one.
func (c *Config) Validate() error {
	d := c.DatabaseSettings
	if _, err := condition.ForDriver(d.Driver); err != nil {
		return fmt.Errorf("databaseSettings.driver: %w", err)
	}
	if d.DSN == "" {
		return fmt.Errorf("databaseSettings.dsn must be set")
	}
	if d.ConnectionTimeout < 1 {
		return fmt.Errorf("databaseSettings.connectionTimeout must be at least 1, got %d", d.ConnectionTimeout)
	}

	if c.ConnectionSettings.Address == "" {
		return fmt.Errorf("connectionSettings.address must be set")
	}

	p := c.PerformanceSettings
	if p.WorkerThreadCount < 1 {
		return fmt.Errorf("performanceSettings.workerThreadCount must be at least 1, got %d", p.WorkerThreadCount)
	}
	if p.QueueCapacity < 0 {
		return fmt.Errorf("performanceSettings.queueCapacity cannot be negative, got %d", p.QueueCapacity)
	}
	if p.RequestTimeout < 1 {
		return fmt.Errorf("performanceSettings.requestTimeout must be at least 1, got %d", p.RequestTimeout)
	}
	if p.LivenessInterval < 1 {
		return fmt.Errorf("performanceSettings.livenessInterval must be at least 1, got %d", p.LivenessInterval)
	}

	a := &c.AuthenticationSettings
	if a.Expiration < 1 {
		return fmt.Errorf("authenticationSettings.expiration must be at least 1, got %d", a.Expiration)
	}
	u := &a.UsernameRequirements
	if u.MinLength < 1 || u.MaxLength < u.MinLength || u.MaxLength > 50 {
		return fmt.Errorf("authenticationSettings.usernameRequirements: need 1 <= minLength <= maxLength <= 50, got %d and %d", u.MinLength, u.MaxLength)
	}
	re, err := compileAllowed(u.AllowedCharacters)
	if err != nil {
		return fmt.Errorf("authenticationSettings.usernameRequirements.allowedCharacters: %w", err)
	}
	u.allowed = re

	r := c.RequestSettings
	if r.MaxLoanDays < 1 {
		return fmt.Errorf("requestSettings.maxLoanDays must be at least 1, got %d", r.MaxLoanDays)
	}
	if r.MaxUnavailableDatesRange < 1 {
		return fmt.Errorf("requestSettings.maxUnavailableDatesRange must be at least 1, got %d", r.MaxUnavailableDatesRange)
	}

	if _, err := logging.ParseLevel(c.LogSettings.LogLevel); err != nil {
		return fmt.Errorf("logSettings.logLevel: %w", err)
	}
	switch c.LogSettings.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logSettings.format must be console or json, got %q", c.LogSettings.Format)
	}
	return nil
}

// Warnings lists settings that are valid but probably unintended.
func (c *Config) Warnings() []string {
	var out []string
	if exp := c.AuthenticationSettings.Expiration; exp < RecommendedExpiration {
		out = append(out, fmt.Sprintf("token expiration is set to %d seconds, which may increase server load", exp))
	}
	if c.ConnectionSettings.AdminAddress == c.ConnectionSettings.Address {
		out = append(out, "adminAddress equals address; the admin router is disabled")
	}
	return out
}

func (p PerformanceSettings) Timeout() time.Duration {
	return time.Duration(p.RequestTimeout) * time.Second
}

func (p PerformanceSettings) Liveness() time.Duration {
	return time.Duration(p.LivenessInterval) * time.Second
}

func (d DatabaseSettings) Timeout() time.Duration {
	return time.Duration(d.ConnectionTimeout) * time.Second
}

// ExpirationDuration returns the token lifetime.
func (a AuthenticationSettings) ExpirationDuration() time.Duration {
	return time.Duration(a.Expiration) * time.Second
}
