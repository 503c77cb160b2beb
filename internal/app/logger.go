package app

import (
	"strings"

	"github.com/smartsupply/agent/pkg/logger"
)

// ConfigureLogging initialises the global logger with the provided level, defaulting to info.
func ConfigureLogging(level, format string) error {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}

	var opts []logger.Option
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		opts = append(opts, logger.WithConsole())
	}
	return logger.Init(level, opts...)
}
