package testutils

import (
	"io"

	"github.com/sirupsen/logrus"
)

// NewTestLogger returns a logger for tests. Output is discarded so test runs
// stay quiet; the debug level keeps every WithField call exercised.
func NewTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetOutput(io.Discard)
	return logger
}
