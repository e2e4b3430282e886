package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/Sternrassler/storefront-client/pkg/cache"
	"github.com/Sternrassler/storefront-client/pkg/logging"
	"github.com/Sternrassler/storefront-client/pkg/storefront"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// app is the storefront service plus the resources it owns for one CLI run.
type app struct {
	sf       *storefront.Storefront
	settings settings
	logger   zerolog.Logger
	closers  []func() error
}

func openApp(ctx context.Context, s settings) (*app, error) {
	logCfg := logging.DefaultConfig()
	logCfg.Level = s.LogLevel
	logCfg.Pretty = s.LogPretty
	logging.Setup(logCfg)

	a := &app{settings: s, logger: logging.NewLogger(logging.ComponentCLI)}

	store, err := a.openStore(ctx, s)
	if err != nil {
		a.close()
		return nil, err
	}

	httpClient, err := sessionHTTPClient(s.APIURL, s.SessionCookie)
	if err != nil {
		a.close()
		return nil, err
	}

	sfLogger := logging.NewLogger(logging.ComponentStorefront)
	cfg := storefront.DefaultConfig(s.APIURL)
	cfg.UserAgent = s.UserAgent
	cfg.Timeout = s.Timeout
	cfg.Store = store
	cfg.HTTPClient = httpClient
	cfg.Logger = &sfLogger
	cfg.OnLoginRedirect = func(loginURL string) {
		a.logger.Warn().Str("login_url", loginURL).Msg("Login required")
	}

	sf, err := storefront.New(cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.sf = sf
	a.closers = append([]func() error{sf.Close}, a.closers...)
	return a, nil
}

func (a *app) openStore(ctx context.Context, s settings) (cache.Store, error) {
	switch s.StoreBackend {
	case backendSQLite:
		store, err := cache.OpenSQLiteStore(s.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case backendRedis:
		redisClient := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
		a.closers = append(a.closers, redisClient.Close)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", s.RedisAddr, err)
		}
		return cache.NewRedisStore(redisClient, cache.DefaultRedisRetention), nil
	default:
		return cache.NewMemoryStore(), nil
	}
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn().Err(err).Msg("Close failed")
		}
	}
	a.closers = nil
}

// sessionHTTPClient returns a client whose cookie jar carries the session
// cookie ("name=value") for the API host. An empty cookie means an
// anonymous session.
func sessionHTTPClient(apiURL, cookie string) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	if cookie != "" {
		name, value, ok := strings.Cut(cookie, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("session cookie must be name=value")
		}
		u, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("parse api url: %w", err)
		}
		jar.SetCookies(u, []*http.Cookie{{Name: strings.TrimSpace(name), Value: value, Path: "/"}})
	}

	return &http.Client{Jar: jar}, nil
}
