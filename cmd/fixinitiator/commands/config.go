package commands

import (
	"github.com/wxcuop/pyfixmsg-plus/session"
)

// CLIConfig holds the configuration for the run command.
type CLIConfig struct {
	Session  session.Config `mapstructure:",squash"`
	LogLevel string         `mapstructure:"log-level"`
}

// NewDefaultCLIConfig returns a CLIConfig with a workable initiator default.
func NewDefaultCLIConfig() *CLIConfig {
	cfg := session.DefaultConfig()
	cfg.ConnectionType = session.Initiator
	cfg.BeginString = "FIX.4.2"
	cfg.SocketConnectHost = "127.0.0.1"
	cfg.SocketConnectPort = 5001
	return &CLIConfig{Session: cfg, LogLevel: "info"}
}

var _config = NewDefaultCLIConfig()
