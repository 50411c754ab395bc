package logging

import (
	"io"
	"net"
	"os"

	logrustash "github.com/bshuster-repo/logrus-logstash-hook"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"yatube/internal/config"
)

// New returns a JSON logger writing to stdout, with an optional Logstash hook.
func New(cfg config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)

	if cfg.LogstashAddr != "" {
		conn, err := net.Dial("tcp", cfg.LogstashAddr)
		if err != nil {
			return nil, errors.Wrapf(err, "connecting to logstash at %s", cfg.LogstashAddr)
		}
		logger.AddHook(logrustash.New(conn, logrustash.DefaultFormatter(logrus.Fields{"type": "yatube"})))
	}

	return logger, nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
