// Package app wires the server's components together from a loaded
// configuration.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"chatgate/src/agent"
	"chatgate/src/aisdk"
	"chatgate/src/anthropic"
	"chatgate/src/config"
	"chatgate/src/executor"
	"chatgate/src/permission"
	"chatgate/src/policy"
	"chatgate/src/server"
	"chatgate/src/store"
	"chatgate/src/tools"
	"chatgate/src/tools/tool_writefile"
)

// App holds all initialized services.
type App struct {
	Config   *config.Config
	Store    store.Store
	Registry *permission.Registry
	Toolbox  *agent.Toolbox
	Model    aisdk.ModelClient
	Service  *executor.Service
	Handler  http.Handler
	Janitor  *server.Janitor
	Logger   *slog.Logger
}

// New builds the full service graph.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	registry := permission.NewRegistry(logger)

	fs := afero.NewOsFs()
	toolbox, err := tools.DefaultToolbox(fs)
	if err != nil {
		return nil, fmt.Errorf("failed to build toolbox: %w", err)
	}
	toolbox.RegisterMiddleware(agent.LoggingMiddleware(logger))

	model, err := anthropic.New(anthropic.Config{
		APIKey:  cfg.API.Key,
		BaseURL: cfg.API.BaseURL,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, err
	}

	checker := policy.NewChecker(policy.Rules{
		Allow:       cfg.Permissions.Allow,
		Ask:         cfg.Permissions.Ask,
		Deny:        cfg.Permissions.Deny,
		DefaultMode: policy.Mode(cfg.Permissions.DefaultMode),
	})

	service, err := executor.NewService(executor.ServiceConfig{
		Store:             st,
		Registry:          registry,
		Checker:           checker,
		Toolbox:           toolbox,
		Model:             model,
		Describe:          describeCall(fs),
		SystemPrompt:      cfg.SystemPrompt,
		PermissionTimeout: cfg.Permissions.Timeout(),
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}

	srv := server.New(server.Config{
		Store:    st,
		Registry: registry,
		Service:  service,
		Logger:   logger,
	})

	var janitor *server.Janitor
	if cfg.Cleanup.Interval() > 0 {
		janitor = server.NewJanitor(st, registry, cfg.Cleanup.Interval(), cfg.Cleanup.MaxAge(), logger)
	}

	return &App{
		Config:   cfg,
		Store:    st,
		Registry: registry,
		Toolbox:  toolbox,
		Model:    model,
		Service:  service,
		Handler:  srv.Router(),
		Janitor:  janitor,
		Logger:   logger,
	}, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		st, err := store.OpenSQLite(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// describeCall builds permission prompt descriptions. File writes get a
// unified diff preview so the reviewer sees the exact change.
func describeCall(fs afero.Fs) executor.PermissionDescriber {
	return func(call *aisdk.ToolCall) string {
		if call.Name == tools.WriteFileName {
			var input struct {
				Path    string `json:"path"`
				Content string `json:"content"`
			}
			if err := json.Unmarshal(call.Input, &input); err == nil && input.Path != "" {
				return tool_writefile.DiffPreview(fs, input.Path, input.Content)
			}
		}
		return fmt.Sprintf("tool %s requested", call.Name)
	}
}
