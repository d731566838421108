package db

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/nickyhof/EmbedDB/core"
	"github.com/nickyhof/EmbedDB/op"
	"github.com/nickyhof/EmbedDB/ps"
)

// MemoryName is the database name that always opens in memory.
const MemoryName = "."

// S3Config holds the credentials used by BACKUP and RESTORE for s3:// URLs.
// Empty fields fall back to the default AWS credential chain.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// Config configures one database.
type Config struct {
	Name string `mapstructure:"name"`

	// Path is the directory of a file-backed database. Empty keeps the
	// whole repository in memory.
	Path string `mapstructure:"path"`

	// DefaultTableType is MEMORY or CACHED and applies to CREATE TABLE
	// statements that name neither.
	DefaultTableType string `mapstructure:"default_table_type"`

	// CacheSize bounds the decoded rows held per CACHED table.
	CacheSize int `mapstructure:"cache_size"`

	// AutoCheckpoint persists the catalog after every committed change
	// instead of only on CHECKPOINT and Close.
	AutoCheckpoint bool `mapstructure:"auto_checkpoint"`

	// Users maps user names to bcrypt password hashes. Without users the
	// single user SA with an empty password is accepted.
	Users map[string]string `mapstructure:"users"`

	// JWTSecret enables HMAC-signed tokens as passwords.
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`

	// Remote is a git URL the repository is pushed to after each checkpoint.
	Remote     string         `mapstructure:"remote"`
	RemoteAuth *ps.RemoteAuth `mapstructure:"remote_auth"`

	// Identity authors the checkpoint commits.
	Identity core.Identity `mapstructure:"identity"`

	S3 S3Config `mapstructure:"s3"`

	Functions *FunctionRegistry `mapstructure:"-"`
	Logger    *slog.Logger      `mapstructure:"-"`
}

// ConfigFromProperties decodes loosely typed connection properties such as
// {"path": "/var/db/books", "cache_size": "512"} into a Config.
func ConfigFromProperties(props map[string]any) (Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return Config{}, core.NewConnectionError(core.CodeInvalidProperties, "invalid connection properties: %v", err)
	}
	if err := decoder.Decode(props); err != nil {
		return Config{}, core.NewConnectionError(core.CodeInvalidProperties, "invalid connection properties: %v", err)
	}
	return cfg, nil
}

// ConfigForName derives a Config from a database name: "." and "mem:<name>"
// open in memory, anything else is a directory path.
func ConfigForName(name string) Config {
	switch {
	case name == "" || name == MemoryName:
		return Config{Name: MemoryName}
	case strings.HasPrefix(strings.ToLower(name), "mem:"):
		return Config{Name: name}
	}
	return Config{Name: filepath.Clean(name), Path: filepath.Clean(name)}
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		if c.Path != "" {
			c.Name = filepath.Clean(c.Path)
		} else {
			c.Name = MemoryName
		}
	}
	if c.CacheSize <= 0 {
		c.CacheSize = op.DefaultCacheSize
	}
	if c.Identity.Name == "" {
		c.Identity = core.Identity{Name: "EmbedDB", Email: "embeddb@localhost"}
	}
	if c.Functions == nil {
		c.Functions = NewFunctionRegistry()
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}
