package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alecgard/pasteagent/internal/config"
	"github.com/alecgard/pasteagent/internal/pastebin"
	"github.com/alecgard/pasteagent/internal/session"
)

// newAgent validates cfg, builds the Pastebin agent and restores any saved
// session key. The returned store is nil when no session file is configured.
func newAgent(cfg *config.Config) (*pastebin.Agent, *session.FileStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	mode, err := cfg.RateLimitMode()
	if err != nil {
		return nil, nil, err
	}

	a, err := pastebin.New(pastebin.Config{
		APIKey:    cfg.Pastebin.APIKey,
		Mode:      mode,
		LoginURL:  cfg.Pastebin.LoginURL,
		APIURL:    cfg.Pastebin.APIURL,
		RawURL:    cfg.Pastebin.RawURL,
		UserAgent: cfg.Pastebin.UserAgent,
		Client:    &http.Client{Timeout: cfg.Pastebin.Timeout},
	})
	if err != nil {
		return nil, nil, err
	}

	if cfg.Session.File == "" {
		return a, nil, nil
	}
	store, err := session.NewFileStore(cfg.Session.File, cfg.Session.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}

	key, err := store.Load()
	switch {
	case errors.Is(err, session.ErrNoSession):
	case err != nil:
		slog.Warn("ignoring unreadable session file", "path", store.Path(), "error", err)
	default:
		a.SetSessionKey(key)
		slog.Debug("restored pastebin session", "path", store.Path())
	}
	return a, store, nil
}

// ensureSession logs in with the configured credentials when no session key
// is held. Without credentials it reports how to log in.
func ensureSession(ctx context.Context, cfg *config.Config, a *pastebin.Agent, store *session.FileStore) error {
	if a.Authenticated() {
		return nil
	}
	if cfg.Pastebin.Username == "" || cfg.Pastebin.Password == "" {
		return errors.New("not logged in: run 'pasteagent login' or set pastebin.username and pastebin.password")
	}
	key, err := a.Login(ctx, cfg.Pastebin.Username, cfg.Pastebin.Password)
	if err != nil {
		return err
	}
	if store != nil {
		if err := store.Save(key); err != nil {
			slog.Warn("could not save session", "path", store.Path(), "error", err)
		}
	}
	return nil
}
