package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/storefront-client/pkg/client"
	"github.com/Sternrassler/storefront-client/pkg/logging"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configName = "storefront"
	envPrefix  = "STOREFRONT"

	keyAPIURL        = "api.url"
	keyUserAgent     = "api.user_agent"
	keyTimeout       = "api.timeout"
	keySessionCookie = "api.session_cookie"
	keyStoreBackend  = "store.backend"
	keySQLitePath    = "store.sqlite_path"
	keyRedisAddr     = "store.redis_addr"
	keyLogLevel      = "log.level"
	keyLogPretty     = "log.pretty"
	keyMetricsAddr   = "metrics.addr"
)

// Store backends.
const (
	backendMemory = "memory"
	backendSQLite = "sqlite"
	backendRedis  = "redis"
)

// settings is the resolved CLI configuration.
type settings struct {
	APIURL        string
	UserAgent     string
	Timeout       time.Duration
	SessionCookie string

	StoreBackend string
	SQLitePath   string
	RedisAddr    string

	LogLevel    logging.LogLevel
	LogPretty   bool
	MetricsAddr string
}

// flagKeys binds persistent flags to config keys.
var flagKeys = map[string]string{
	"api-url":      keyAPIURL,
	"store":        keyStoreBackend,
	"log-level":    keyLogLevel,
	"metrics-addr": keyMetricsAddr,
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(keyAPIURL, "http://localhost:5000/api")
	v.SetDefault(keyUserAgent, client.DefaultConfig("").UserAgent)
	v.SetDefault(keyTimeout, client.DefaultTimeout)
	v.SetDefault(keyStoreBackend, backendMemory)
	v.SetDefault(keySQLitePath, "storefront.db")
	v.SetDefault(keyRedisAddr, "localhost:6379")
	v.SetDefault(keyLogLevel, string(logging.LevelWarn))
	v.SetDefault(keyMetricsAddr, ":9090")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadSettings reads the optional config file, then resolves flags,
// environment and defaults in that order of precedence.
func loadSettings(v *viper.Viper, flags *pflag.FlagSet, configFile string) (settings, error) {
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return settings{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	level, err := logging.ParseLevel(v.GetString(keyLogLevel))
	if err != nil {
		return settings{}, err
	}

	s := settings{
		APIURL:        v.GetString(keyAPIURL),
		UserAgent:     v.GetString(keyUserAgent),
		Timeout:       v.GetDuration(keyTimeout),
		SessionCookie: v.GetString(keySessionCookie),
		StoreBackend:  strings.ToLower(v.GetString(keyStoreBackend)),
		SQLitePath:    v.GetString(keySQLitePath),
		RedisAddr:     v.GetString(keyRedisAddr),
		LogLevel:      level,
		LogPretty:     v.GetBool(keyLogPretty),
		MetricsAddr:   v.GetString(keyMetricsAddr),
	}

	switch s.StoreBackend {
	case backendMemory, backendSQLite, backendRedis:
	default:
		return settings{}, fmt.Errorf("unknown store backend %q (want memory, sqlite or redis)", s.StoreBackend)
	}
	return s, nil
}
