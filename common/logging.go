package common

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogging configures the root logrus logger from the config snapshot.
// The MCP transport owns stdout, so all logging goes to stderr, and
// additionally to a rotated file when LOG_FILE is set.
func SetupLogging(conf *Config) {
	lvl, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var out io.Writer = os.Stderr
	if conf.LogFile != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   conf.LogFile,
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     7,
		})
	}

	logrus.SetOutput(out)
}

// GetLogger returns a logger entry tagged with the owning component.
func GetLogger(name string) *logrus.Entry {
	return logrus.WithField("p", name)
}
