package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	BackendSQLite = "sqlite"
	BackendEtcd   = "etcd"
)

type Config struct {
	ListenAddr        string        `mapstructure:"listen_addr"`
	StoreBackend      string        `mapstructure:"store_backend"`
	DBPath            string        `mapstructure:"db_path"`
	EtcdEndpoints     []string      `mapstructure:"etcd_endpoints"`
	EtcdPrefix        string        `mapstructure:"etcd_prefix"`
	EtcdDialTimeout   time.Duration `mapstructure:"etcd_dial_timeout"`
	RecordsCollection string        `mapstructure:"records_collection"`
	CrewCollection    string        `mapstructure:"crew_collection"`
	DisplayTimezone   string        `mapstructure:"display_timezone"`
	LogLevel          string        `mapstructure:"log_level"`
	LogFormat         string        `mapstructure:"log_format"`
	LogFile           string        `mapstructure:"log_file"`
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"listen":    "listen_addr",
	"log-level": "log_level",
	"db":        "db_path",
	"backend":   "store_backend",
}

func defaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("store_backend", BackendSQLite)
	v.SetDefault("db_path", "/data/containerlog.db")
	v.SetDefault("etcd_endpoints", []string{"localhost:2379"})
	v.SetDefault("etcd_prefix", "/containerlog")
	v.SetDefault("etcd_dial_timeout", 5*time.Second)
	v.SetDefault("records_collection", "logs")
	v.SetDefault("crew_collection", "crew")
	v.SetDefault("display_timezone", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_file", "")
}

// Load reads configuration from defaults and environment variables. Flags
// that were set on the command line take precedence; flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendSQLite:
		if c.DBPath == "" {
			return errors.New("DB_PATH is required when STORE_BACKEND=sqlite")
		}
	case BackendEtcd:
		if len(c.EtcdEndpoints) == 0 {
			return errors.New("ETCD_ENDPOINTS is required when STORE_BACKEND=etcd")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.RecordsCollection == "" || c.CrewCollection == "" {
		return errors.New("RECORDS_COLLECTION and CREW_COLLECTION must not be empty")
	}
	return nil
}

// Location resolves DISPLAY_TIMEZONE. Empty means the host's local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.DisplayTimezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid DISPLAY_TIMEZONE: %w", err)
	}
	return loc, nil
}
