package db

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultConfigPath = "config/config.yaml"

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql | sqlite3 | pgx
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	// sqlite3 のときだけ使う
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type Config struct {
	Version     string         `yaml:"version"`
	Mode        string         `yaml:"mode"`
	Server      ServerConfig   `yaml:"server"`
	DB          DatabaseConfig `yaml:"database"`
	Auth        AuthConfig     `yaml:"auth"`
	Log         LogConfig      `yaml:"log"`
	Certificate Certs          `yaml:"certificate"`
}

func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(buf)
}

// ParseConfig decodes YAML, applies defaults and env overrides, then validates.
func ParseConfig(buf []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8443"
	}
	if c.DB.Driver == "" {
		c.DB.Driver = DriverMySQL
	}
	if c.DB.Port == 0 {
		switch c.DB.Driver {
		case DriverMySQL:
			c.DB.Port = 3306
		case DriverPostgres:
			c.DB.Port = 5432
		}
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		if c.Mode == "release" {
			c.Log.Format = "json"
		} else {
			c.Log.Format = "text"
		}
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BIBLIOGOYA_DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
	if v := os.Getenv("BIBLIOGOYA_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
}

func (c *Config) Validate() error {
	if c.Mode != "dev" && c.Mode != "release" {
		return fmt.Errorf("config: mode must be dev or release, got %q", c.Mode)
	}
	switch c.DB.Driver {
	case DriverMySQL, DriverPostgres:
		if c.DB.Host == "" || c.DB.DBName == "" {
			return fmt.Errorf("config: database.host and database.dbname are required for %s", c.DB.Driver)
		}
	case DriverSQLite:
		if c.DB.Path == "" {
			return fmt.Errorf("config: database.path is required for sqlite3")
		}
	default:
		return fmt.Errorf("config: unsupported database.driver %q", c.DB.Driver)
	}
	if c.Mode == "release" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: auth.jwt_secret is required in release mode")
	}
	return nil
}
