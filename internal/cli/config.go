package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

const (
	maxWalkDepth = 25
)

// Config represents the fhirsql configuration from fhirsql.yaml.
type Config struct {
	// Dialect is the SQL dialect compiled for: postgres or sqlite.
	Dialect string `mapstructure:"dialect" json:"dialect"`
	// ResourceType is the default resource type for expressions that do
	// not start with one.
	ResourceType string `mapstructure:"resource_type" json:"resource_type,omitempty"`

	Database DatabaseConfig `mapstructure:"database" json:"database"`

	// Per-command configuration
	Explain ExplainConfig `mapstructure:"explain" json:"explain"`
	Run     RunConfig     `mapstructure:"run" json:"run"`
	Load    LoaderConfig  `mapstructure:"load" json:"load"`
	Log     LogConfig     `mapstructure:"log" json:"log"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver overrides the database/sql driver (pgx, postgres, sqlite, sqlite3).
	Driver string `mapstructure:"driver" json:"driver,omitempty"`
	URL    string `mapstructure:"url" json:"url,omitempty"`
	// Path is the SQLite database file.
	Path     string `mapstructure:"path" json:"path,omitempty"`
	Host     string `mapstructure:"host" json:"host,omitempty"`
	Port     int    `mapstructure:"port" json:"port,omitempty"`
	Name     string `mapstructure:"name" json:"name,omitempty"`
	User     string `mapstructure:"user" json:"user,omitempty"`
	Password string `mapstructure:"password" json:"password,omitempty"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode,omitempty"`
}

// ExplainConfig holds explain command settings.
type ExplainConfig struct {
	Format string `mapstructure:"format" json:"format"`
}

// RunConfig holds run command settings.
type RunConfig struct {
	Format string `mapstructure:"format" json:"format"`
}

// LoaderConfig holds load command settings.
type LoaderConfig struct {
	DryRun      bool `mapstructure:"dry_run" json:"dry_run"`
	Force       bool `mapstructure:"force" json:"force"`
	GenerateIDs bool `mapstructure:"generate_ids" json:"generate_ids"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env > config file > defaults.
//
// A .env file next to the config file (or in the working directory when
// there is none) is read first; it never overrides variables already set.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	// 1. Set defaults first (lowest precedence)
	setDefaults(v)

	// 2. Find config file
	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	// 3. Environment, including .env
	if err := loadDotEnv(configPath); err != nil {
		return nil, configPath, err
	}
	v.SetEnvPrefix("FHIRSQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database.url", "FHIRSQL_DATABASE_URL", "DATABASE_URL")

	// 4. Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dialect", "postgres")
	v.SetDefault("resource_type", "")

	// Database defaults
	v.SetDefault("database.driver", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.path", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "prefer")

	v.SetDefault("explain.format", "yaml")
	v.SetDefault("run.format", "table")

	v.SetDefault("load.dry_run", false)
	v.SetDefault("load.force", false)
	v.SetDefault("load.generate_ids", false)

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
}

// loadDotEnv reads .env from the directory of configPath, or from the
// working directory when configPath is empty. A missing file is fine.
func loadDotEnv(configPath string) error {
	dir := "."
	if configPath != "" {
		dir = filepath.Dir(configPath)
	}
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for fhirsql.yaml or fhirsql.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		expanded, err := homedir.Expand(explicitPath)
		if err != nil {
			return "", fmt.Errorf("expanding config path: %w", err)
		}
		if _, err := os.Stat(expanded); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return expanded, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range []string{"fhirsql.yaml", "fhirsql.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		// Stop at the repository root
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil // No config found, use defaults
}

// DSN returns the database connection string for the configured dialect.
//
// For sqlite, database.path (with ~ expanded) is used, falling back to
// database.url. For postgres, database.url is returned directly when set;
// otherwise a postgres:// URL is built from the discrete fields.
func (c *Config) DSN() (string, error) {
	db := c.Database

	if d := strings.ToLower(strings.TrimSpace(c.Dialect)); d == "sqlite" || d == "sqlite3" {
		if db.Path != "" {
			return homedir.Expand(db.Path)
		}
		if db.URL != "" {
			return db.URL, nil
		}
		return "", fmt.Errorf("database.path is required for the sqlite dialect")
	}

	if db.URL != "" {
		return db.URL, nil
	}

	if db.Host == "" {
		return "", fmt.Errorf("database.host is required when database.url is not set")
	}
	if db.Name == "" {
		return "", fmt.Errorf("database.name is required when database.url is not set")
	}
	if db.User == "" {
		return "", fmt.Errorf("database.user is required when database.url is not set")
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   "/" + db.Name,
	}
	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	} else {
		u.User = url.User(db.User)
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Redacted returns a copy of the config with secrets masked, for display.
func (c *Config) Redacted() Config {
	out := *c
	if out.Database.Password != "" {
		out.Database.Password = "********"
	}
	if out.Database.URL != "" {
		if u, err := url.Parse(out.Database.URL); err == nil && u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), "xxxxx")
				out.Database.URL = u.String()
			}
		}
	}
	return out
}
