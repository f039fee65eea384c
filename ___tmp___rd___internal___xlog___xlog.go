// Package xlog is a small wrapper around a package-level logrus logger,
// used for xtrace's own diagnostics (connection lifecycle, parse errors,
// config problems) as distinct from the decoded wire trace itself, which
// internal/output writes straight to its configured sink.
package xlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var std = logrus.New()

func init() {
	std.SetOutput(os.Stderr)
	std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// SetLevel adjusts verbosity ("debug", "info", "warn", "error", ...).
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	std.SetLevel(lvl)
	return nil
}

// Conn returns an entry pre-tagged with a connection id, the field every
// diagnostic line in this package carries.
func Conn(id uint32) *logrus.Entry {
	return std.WithField("conn", id)
}

// Direction further tags an entry with which leg of the connection a
// diagnostic concerns ("client" or "server").
func Direction(id uint32, dir string) *logrus.Entry {
	return std.WithFields(logrus.Fields{"conn": id, "dir": dir})
}

func Debugf(format string, args ...interface{}) { std.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { std.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { std.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { std.Errorf(format, args...) }


