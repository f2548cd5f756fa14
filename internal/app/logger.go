package app

import (
	"github.com/charlesng35/agentdesk/pkg/logger"
)

// ServiceName is attached to every log entry.
const ServiceName = "agentdesk"

// ConfigureLogging installs the global logger described by the server settings.
// Empty values fall back to info level and JSON output.
func ConfigureLogging(cfg ServerConfig) error {
	return logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: ServiceName,
	})
}
