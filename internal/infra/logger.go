// README: Structured logger construction (logrus).
package infra

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a JSON logger in production and a text logger elsewhere.
// An unknown level falls back to info.
func NewLogger(level string, production bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if production {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
