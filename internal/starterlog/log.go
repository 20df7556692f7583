// Package starterlog provides the structured logging conventions shared by
// every component of the supervisor core: one logrus entry per component,
// tagged with the fields in fields.go.
package starterlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// G returns the package-wide logger. Kept as a function (rather than a bare
// package variable) so components can be tested against a redirected
// output without touching global state directly.
func G() *logrus.Entry {
	return logrus.NewEntry(std)
}

var std = logrus.StandardLogger()

// Configure sets the output, level and formatter used by every subsequent
// G() call. Mirrors the flag handling in the teacher's own daemon entrypoint
// (level/format/file), adapted to the single binary here.
func Configure(level string, jsonFormat bool, out *os.File) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	std.SetLevel(lvl)

	if jsonFormat {
		std.SetFormatter(&logrus.JSONFormatter{})
	} else {
		std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if out != nil {
		std.SetOutput(out)
	}
	return nil
}
