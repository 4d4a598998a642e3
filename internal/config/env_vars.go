package config

import (
	"fmt"
	"strings"
)

type EnvVars struct {
	settings Settings
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.settings.Port
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.settings.AppName
}

// GetEnv returns the deployment environment; "DEV" enables console logging.
func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.settings.Env)
}

func (e EnvVars) GetLogLevel() string {
	return e.settings.LogLevel
}
