/*
Copyright © 2025 The Forge Authors
*/
package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/forgeproj/forge/llm"
	"github.com/forgeproj/forge/store"
)

// GetStore builds the project store selected by the configuration.
func GetStore() (store.ProjectStore, error) {
	config := GetConfig()

	switch config.Store.Backend {
	case "sqlite":
		dbPath := config.Store.DBPath
		if dbPath == "" {
			dbPath = filepath.Join(config.Project.RootDir, "forge.db")
		}
		s, err := store.NewSQLiteStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store at %s: %w", dbPath, err)
		}
		return s, nil
	case "file":
		path := config.Store.File
		if path == "" {
			path = filepath.Join(config.Project.RootDir, "forge."+config.Store.Format)
		}
		s, err := store.NewFileStore(path, config.Store.Format)
		if err != nil {
			return nil, fmt.Errorf("failed to open file store at %s: %w", path, err)
		}
		return s, nil
	case "http":
		if config.API.BaseURL == "" {
			return nil, fmt.Errorf("store backend %q requires api.baseUrl", config.Store.Backend)
		}
		timeout := time.Duration(config.API.RequestTimeoutSeconds) * time.Second
		return store.NewHTTPStore(config.API.BaseURL, config.API.Token, timeout), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", config.Store.Backend)
	}
}

// GetAssistant returns the AI client matching the store backend. The HTTP
// backend proxies assistant calls to the remote API; local backends run the
// assistant in-process against the configured LLM provider.
func GetAssistant(ctx context.Context, st store.ProjectStore) (store.AssistantClient, error) {
	if remote, ok := st.(store.AssistantClient); ok {
		return remote, nil
	}
	provider, err := llm.NewProvider(ctx, &GetConfig().LLM)
	if err != nil {
		return nil, err
	}
	return llm.NewAssistant(provider, st), nil
}
