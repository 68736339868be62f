package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/imkarma/squad/internal/config"
	"github.com/imkarma/squad/internal/history"
	"github.com/imkarma/squad/internal/memory"
	"github.com/imkarma/squad/internal/registry"
	"github.com/imkarma/squad/internal/store"
)

const squadDirName = ".squad"

// squadPath returns the path to a file inside .squad/.
func squadPath(parts ...string) string {
	elems := append([]string{squadDirName}, parts...)
	return filepath.Join(elems...)
}

// mustStore opens the task store, failing if squad is not initialized.
func mustStore() (*store.Store, error) {
	if _, err := os.Stat(squadDirName); os.IsNotExist(err) {
		return nil, fmt.Errorf("squad not initialized. Run: squad init")
	}
	return store.New(squadPath("tasks.json")), nil
}

// mustConfig loads .squad/config.yaml.
func mustConfig() (*config.Config, error) {
	cfg, err := config.Load(squadPath("config.yaml"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("squad not initialized. Run: squad init")
		}
		return nil, err
	}
	return cfg, nil
}

func openRegistry() *registry.Registry {
	return registry.New(squadPath("employees.json"))
}

func openMemory(cfg *config.Config, logger *zap.Logger) *memory.Log {
	return memory.New(squadPath("memory"), cfg.MemoryLimit, logger)
}

// openRecorder opens the history event log. Failure degrades to no
// history rather than blocking the command.
func openRecorder(logger *zap.Logger) *history.Recorder {
	rec, err := history.Open(squadPath("history.db"))
	if err != nil {
		logger.Warn("history unavailable", zap.Error(err))
		return nil
	}
	return rec
}

// newLogger builds the command logger. Internal logging stays off
// unless --verbose is set; command output goes to stdout regardless.
func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
