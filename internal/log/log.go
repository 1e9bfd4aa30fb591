// Package log provides the package-level logger used by pkg/gateway.
//
// Grounded on cmd/tape/main.go's getLogger/setLogLevel: a logrus.Logger
// defaulting to Info, overridable by an environment variable.
package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the shared structured logger. Call sites never log key
// material, password material, or raw PEM bytes; see the custodian
// package's no-key-in-errors test for the corresponding guard.
var Logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	if value, ok := os.LookupEnv("HFCTL_LOGLEVEL"); ok {
		if level, err := logrus.ParseLevel(value); err == nil {
			l.SetLevel(level)
		}
	}
	return l
}
