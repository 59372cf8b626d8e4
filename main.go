package main

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/quillhq/quill-lsp/internal/completion"
	"github.com/quillhq/quill-lsp/internal/config"
	"github.com/quillhq/quill-lsp/internal/diagnostics"
	"github.com/quillhq/quill-lsp/internal/editor"
	"github.com/quillhq/quill-lsp/internal/lsp"
	"github.com/quillhq/quill-lsp/internal/worker"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	settings := config.NewSettings()
	configPath := ""
	userDir, err := config.UserDir()
	if err != nil {
		logger.Warn().Err(err).Msg("config directory unavailable, using defaults")
	} else {
		configPath = filepath.Join(userDir, "config.json")
		if err := config.WriteDefaultFile(configPath); err != nil {
			logger.Warn().Err(err).Msg("failed to write default config")
		}
		if err := config.LoadFile(configPath, settings); err != nil {
			logger.Warn().Err(err).Msg("failed to load config, using defaults")
		}
		stopWatch, err := config.WatchFile(configPath, settings, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("config watching disabled")
		} else {
			defer stopWatch()
		}
	}

	var cache *worker.ResultCache
	if userDir != "" {
		cache, err = worker.NewResultCache(filepath.Join(userDir, "cache.db"))
		if err != nil {
			logger.Warn().Err(err).Msg("validation cache disabled")
			cache = nil
		}
	}

	client := worker.NewClient(workerPath(logger), nil, settings, logger)
	workspace := editor.NewWorkspace(logger)
	adapter := diagnostics.New(workspace, client, settings, cache, logger)

	server := lsp.NewServer(workspace, logger)
	server.RegisterCompletionProvider(completion.NewStaticProvider(workspace, client, logger))
	server.RegisterCloser(func() error { adapter.Dispose(); return nil })
	server.RegisterCloser(client.Close)
	if cache != nil {
		server.RegisterCloser(cache.Close)
	}
	if configPath != "" {
		server.OnReloadConfig = func() error { return config.LoadFile(configPath, settings) }
	}

	if err := server.Start(os.Stdin, os.Stdout); err != nil {
		logger.Fatal().Err(err).Msg("LSP server error")
	}
}

// workerPath locates the quill-worker binary: next to this executable
// first, then on PATH.
func workerPath(logger zerolog.Logger) string {
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), "quill-worker")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if found, err := exec.LookPath("quill-worker"); err == nil {
		return found
	}
	logger.Warn().Msg("quill-worker not found next to the executable or on PATH")
	return "quill-worker"
}
