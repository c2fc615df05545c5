package commands

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wxcuop/pyfixmsg-plus/fix"
	"github.com/wxcuop/pyfixmsg-plus/session"
	"github.com/wxcuop/pyfixmsg-plus/transport"
)

// NewRunCmd returns the command that connects to a FIX acceptor and runs
// the session until the process is interrupted or the peer logs off.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Connect to a FIX acceptor and run the session",
		PreRunE: loadConfig,
		RunE:    runInitiator,
	}
	AddRunFlags(cmd)
	return cmd
}

// AddRunFlags adds flags to the run command.
func AddRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("begin-string", _config.Session.BeginString, "FIX BeginString, e.g. FIX.4.2")
	cmd.Flags().String("sender-comp-id", _config.Session.SenderCompID, "SenderCompID")
	cmd.Flags().String("target-comp-id", _config.Session.TargetCompID, "TargetCompID")
	cmd.Flags().String("connect-host", _config.Session.SocketConnectHost, "Acceptor host to dial")
	cmd.Flags().Int("connect-port", _config.Session.SocketConnectPort, "Acceptor port to dial")
	cmd.Flags().Duration("heartbeat", _config.Session.HeartBtInt, "HeartBtInt")
	cmd.Flags().Bool("reset-seq-num", _config.Session.ResetSeqNumOnLogon, "Request 141=Y on Logon")
	cmd.Flags().String("store", string(_config.Session.MessageStoreType), "memory, file, sqlite, or redis")
	cmd.Flags().String("store-path", _config.Session.StorePath, "Path for the file/sqlite store backends")
	cmd.Flags().String("log-level", _config.LogLevel, "debug, info, warn, error, fatal, panic")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	viper.SetConfigName("fixinitiator")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err == nil {
		logrus.Debugf("using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
		return err
	}

	return viper.Unmarshal(_config)
}

func runInitiator(cmd *cobra.Command, args []string) error {
	logrus.SetLevel(logLevel(_config.LogLevel))

	streamLayer, err := transport.NewTCPStreamLayer("127.0.0.1:0", "")
	if err != nil {
		return err
	}

	engine, err := session.New(_config.Session, session.Callbacks{
		OnLogon: func(id fix.SessionID) {
			logrus.WithField("session", id.String()).Info("logon complete")
		},
		OnLogout: func(id fix.SessionID, reason string) {
			logrus.WithFields(logrus.Fields{"session": id.String(), "reason": reason}).Info("session disconnected")
		},
		OnMessageFromApp: func(msg *fix.Message, id fix.SessionID) {
			msgType, _ := msg.Get(fix.TagMsgType)
			logrus.WithFields(logrus.Fields{"session": id.String(), "msg_type": msgType}).Info("application message received")
		},
	}, fix.NewTagValueCodec(), streamLayer)
	if err != nil {
		return err
	}

	return engine.Start()
}

func logLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}
