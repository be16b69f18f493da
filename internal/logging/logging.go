// Package logging sets up the structured logger shared across the reactor,
// router, and CGI adapter.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger writing to stderr with the given level name
// (debug, info, warn, error). An unknown level falls back to info.
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.Out = os.Stderr
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}

// Component returns a sub-logger tagged with a component field, the way a
// reactor, router, or cgi adapter identifies its own log lines.
func Component(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}
