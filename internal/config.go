package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notter/internal/indexsync"
	"github.com/starford/notter/internal/models"
	"github.com/starford/notter/internal/notes"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Search engines.
const (
	EngineBleve  = "bleve"
	EngineSQLite = "sqlite"
	EngineMemory = "memory"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Notes  NotesConfig       `yaml:"notes"`
	Search SearchConfig      `yaml:"search"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Notes.Validate(); err != nil {
		return fmt.Errorf("notes: %w", err)
	}
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NotesConfig describes the notes directory and how new notes are named.
type NotesConfig struct {
	Path          string `yaml:"path"`
	NamingPattern string `yaml:"naming_pattern"`
	DefaultType   string `yaml:"default_type"`
	Watch         bool   `yaml:"watch"`
}

// Validate validates the notes configuration.
func (c *NotesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.NamingPattern, validation.By(func(any) error {
			return notes.ValidatePattern(c.NamingPattern)
		})),
		validation.Field(&c.DefaultType, validation.By(func(any) error {
			_, err := models.ParseNoteType(c.DefaultType)
			return err
		})),
	)
}

// Type returns the parsed default note type.
func (c *NotesConfig) Type() models.NoteType {
	t, err := models.ParseNoteType(c.DefaultType)
	if err != nil {
		return models.Markdown
	}
	return t
}

// SearchConfig selects the search engine and the index update policy.
type SearchConfig struct {
	Engine          string        `yaml:"engine"`
	Path            string        `yaml:"path"`
	AutoIndex       bool          `yaml:"auto_index"`
	Mode            string        `yaml:"mode"`
	RebuildInterval time.Duration `yaml:"rebuild_interval"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	rebuilds := c.Mode == string(indexsync.Periodic) || c.Mode == string(indexsync.Hybrid)
	return validation.ValidateStruct(c,
		validation.Field(&c.Engine, validation.Required, validation.In(EngineBleve, EngineSQLite, EngineMemory)),
		validation.Field(&c.Path, validation.When(c.Engine != EngineMemory, validation.Required)),
		validation.Field(&c.Mode, validation.Required, validation.In(
			string(indexsync.Incremental), string(indexsync.Periodic), string(indexsync.Hybrid))),
		validation.Field(&c.RebuildInterval, validation.When(rebuilds,
			validation.Required, validation.Min(time.Duration(0)).Exclusive())),
	)
}

// Policy converts the configuration to a coordinator policy.
func (c *SearchConfig) Policy() indexsync.Policy {
	mode, err := indexsync.ParseMode(c.Mode)
	if err != nil {
		mode = indexsync.Incremental
	}
	return indexsync.Policy{AutoIndex: c.AutoIndex, Mode: mode, RebuildInterval: c.RebuildInterval}
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Notes: NotesConfig{
			Path:          "./notes",
			NamingPattern: "{number}-{title}.{extension}",
			DefaultType:   "markdown",
			Watch:         true,
		},
		Search: SearchConfig{
			Engine:          EngineBleve,
			Path:            "./data/notes.bleve",
			AutoIndex:       true,
			Mode:            string(indexsync.Hybrid),
			RebuildInterval: time.Hour,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
