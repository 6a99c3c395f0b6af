// Package config loads an entityassist.Config from defaults, an optional
// entityassist.yaml file, .env files and ENTITYASSIST_* environment
// variables, in increasing order of precedence. Command line flags bound to
// the same viper instance take precedence over all of them.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	entityassist "github.com/Entity-Assist/EntityAssist-sub001"
)

const (
	// EnvPrefix prefixes every environment variable, e.g.
	// ENTITYASSIST_MAX_OPEN_CONNS.
	EnvPrefix = "entityassist"
	// FileName is the config file name, without extension.
	FileName = "entityassist"
)

// Keys follow the yaml tags of entityassist.Config, so Marshal output can be
// read back as a config file. Flags use the same names with dashes.
const (
	KeyDriver          = "driver"
	KeyURL             = "connection_url"
	KeyHost            = "host"
	KeyPort            = "port"
	KeyDatabase        = "database"
	KeyUsername        = "username"
	KeyPassword        = "password"
	KeyMaxOpenConns    = "max_open_conns"
	KeyMaxIdleConns    = "max_idle_conns"
	KeyConnMaxLifetime = "conn_max_lifetime"
	KeyConnMaxIdleTime = "conn_max_idle_time"
	KeyLogLevel        = "log_level"
	KeySingularTable   = "singular_table"
	KeyDetached        = "detached"
	KeySeparateRawPool = "separate_raw_pool"
	KeyQueryDebug      = "query_debug"
	KeySSLEnabled      = "ssl.enabled"
	KeySSLMode         = "ssl.mode"
	KeySSLCertFile     = "ssl.cert_file"
	KeySSLKeyFile      = "ssl.key_file"
	KeySSLCAFile       = "ssl.ca_file"
)

// Defaults returns the configuration used when nothing overrides it.
func Defaults() entityassist.Config {
	return entityassist.Config{
		Driver:          entityassist.DriverSQLite,
		Database:        "entityassist.db",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		LogLevel:        "warn",
		SSL:             entityassist.SSLConfig{Mode: "disable"},
	}
}

// LoadEnvFiles loads .env and then .env.local from the working directory.
// Missing files are ignored; variables already set are not overwritten.
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// Init prepares v for environment lookups and registers the defaults.
func Init(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault(KeyDriver, d.Driver)
	v.SetDefault(KeyDatabase, d.Database)
	v.SetDefault(KeyMaxOpenConns, d.MaxOpenConns)
	v.SetDefault(KeyMaxIdleConns, d.MaxIdleConns)
	v.SetDefault(KeyConnMaxLifetime, d.ConnMaxLifetime)
	v.SetDefault(KeyConnMaxIdleTime, d.ConnMaxIdleTime)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeySSLMode, d.SSL.Mode)
}

// Load reads the configuration through v. When paths are given, the first
// entityassist.yaml found in them is read; not finding one is not an error.
func Load(v *viper.Viper, paths ...string) (entityassist.Config, error) {
	Init(v)

	if len(paths) > 0 {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		for _, p := range paths {
			v.AddConfigPath(p)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return entityassist.Config{}, entityassist.NewErrorWithCause(
					entityassist.ErrorTypeInvalidArgument, "cannot read config file", err)
			}
		}
	}

	cfg := entityassist.Config{
		Driver:          v.GetString(KeyDriver),
		ConnectionURL:   v.GetString(KeyURL),
		Host:            v.GetString(KeyHost),
		Port:            v.GetInt(KeyPort),
		Database:        v.GetString(KeyDatabase),
		Username:        v.GetString(KeyUsername),
		Password:        v.GetString(KeyPassword),
		MaxOpenConns:    v.GetInt(KeyMaxOpenConns),
		MaxIdleConns:    v.GetInt(KeyMaxIdleConns),
		ConnMaxLifetime: v.GetDuration(KeyConnMaxLifetime),
		ConnMaxIdleTime: v.GetDuration(KeyConnMaxIdleTime),
		LogLevel:        v.GetString(KeyLogLevel),
		SingularTable:   v.GetBool(KeySingularTable),
		Detached:        v.GetBool(KeyDetached),
		SeparateRawPool: v.GetBool(KeySeparateRawPool),
		QueryDebug:      v.GetBool(KeyQueryDebug),
		SSL: entityassist.SSLConfig{
			Enabled:  v.GetBool(KeySSLEnabled),
			Mode:     v.GetString(KeySSLMode),
			CertFile: v.GetString(KeySSLCertFile),
			KeyFile:  v.GetString(KeySSLKeyFile),
			CAFile:   v.GetString(KeySSLCAFile),
		},
	}

	if cfg.Driver != "pq" {
		cfg.Driver = entityassist.NormalizeDriver(cfg.Driver)
		if !entityassist.IsDriverSupported(cfg.Driver) {
			return entityassist.Config{}, entityassist.NewError(
				entityassist.ErrorTypeInvalidArgument, "unsupported driver: "+cfg.Driver)
		}
	}
	return cfg, nil
}

// FlagName returns the command line flag name for a key.
func FlagName(key string) string {
	return strings.NewReplacer("_", "-", ".", "-").Replace(key)
}

// Marshal renders cfg as YAML with the password masked.
func Marshal(cfg entityassist.Config) ([]byte, error) {
	if cfg.Password != "" {
		cfg.Password = "********"
	}
	return yaml.Marshal(cfg)
}
