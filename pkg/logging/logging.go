package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds the process logger.
// Production gets JSON output for log aggregation, everything else the text formatter.
func New(environment string) *logrus.Logger {
	return NewWithOutput(environment, os.Stdout)
}

func NewWithOutput(environment string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	if strings.EqualFold(environment, "production") {
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logger.SetLevel(logrus.DebugLevel)
	}

	return logger
}

// Discard returns a logger that drops everything. Used by tests and optional components.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// WithUser scopes a logger to one chat user and session.
func WithUser(logger logrus.FieldLogger, userID, sessionID string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": sessionID,
	})
}
