package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch re-decodes the config file whenever it changes and hands valid results to
// onChange. Invalid edits are logged and skipped so the previous config stays in force.
// It is a no-op when the file did not exist at load time.
func (l Loaded) Watch(logger *slog.Logger, onChange func(Config)) {
	if l.v == nil || !l.Exists || onChange == nil {
		return
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	l.v.OnConfigChange(func(event fsnotify.Event) {
		cfg, err := decode(l.v)
		if err != nil {
			logger.Warn("config reload failed", "path", event.Name, "error", err.Error())
			return
		}
		if _, err := Validate(cfg); err != nil {
			logger.Warn("config reload rejected", "path", event.Name, "error", err.Error())
			return
		}
		logger.Info("config reloaded", "path", event.Name, "trust_level", cfg.Trust.Level)
		onChange(cfg)
	})
	l.v.WatchConfig()
}
