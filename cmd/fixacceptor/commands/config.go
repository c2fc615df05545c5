package commands

import (
	"github.com/wxcuop/pyfixmsg-plus/session"
)

// CLIConfig holds the configuration for the run command.
type CLIConfig struct {
	Session  session.Config `mapstructure:",squash"`
	LogLevel string         `mapstructure:"log-level"`
}

// NewDefaultCLIConfig returns a CLIConfig with a workable acceptor default.
func NewDefaultCLIConfig() *CLIConfig {
	cfg := session.DefaultConfig()
	cfg.ConnectionType = session.Acceptor
	cfg.BeginString = "FIX.4.2"
	cfg.SocketAcceptAddr = ":5001"
	return &CLIConfig{Session: cfg, LogLevel: "info"}
}

var _config = NewDefaultCLIConfig()
