package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// levelFile is the subset of the config file a running gateway re-reads.
type levelFile struct {
	Observability struct {
		Logging struct {
			Level string `yaml:"level"`
		} `yaml:"logging"`
	} `yaml:"observability"`
}

// readLevel returns the logging level set in the file at path, or "" when
// the file leaves it unset.
func readLevel(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var f levelFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Observability.Logging.Level, nil
}

// WatchLogLevel applies edits of observability.logging.level in the file at
// path to level until ctx is done. LOG_LEVEL, when set, pins the level and
// nothing is watched. The directory is watched rather than the file so that
// editors which replace the file on save are still seen.
func WatchLogLevel(ctx context.Context, path string, level zap.AtomicLevel, logger *zap.Logger) error {
	if path == "" || os.Getenv("LOG_LEVEL") != "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					continue
				}
				applyLevel(path, level, logger)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("File watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

func applyLevel(path string, level zap.AtomicLevel, logger *zap.Logger) {
	name, err := readLevel(path)
	if err != nil {
		logger.Warn("Failed to reload log level", zap.String("path", path), zap.Error(err))
		return
	}
	if name == "" {
		return
	}
	next, err := zap.ParseAtomicLevel(name)
	if err != nil {
		logger.Warn("Ignoring invalid log level", zap.String("level", name), zap.Error(err))
		return
	}
	if next.Level() == level.Level() {
		return
	}
	level.SetLevel(next.Level())
	logger.Info("Log level changed", zap.String("level", next.Level().String()))
}
