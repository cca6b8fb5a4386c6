// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package logger

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cilium/statgraph/pkg/logger/logfields"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"

	levelOpt  = "level"
	formatOpt = "format"

	defaultLogFormat = LogFormatText
	defaultLogLevel  = logrus.InfoLevel
)

var logFormats = []LogFormat{LogFormatText, LogFormatJSON}

// DefaultLogger is the logger every statgraph package writes to. It is kept
// apart from the logrus standard logger, which SetupLogging silences so that
// libraries stay quiet.
var DefaultLogger = newLogger()

// LogOptions holds the validated logging settings, keyed by option name.
type LogOptions map[string]string

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(newFormatter(defaultLogFormat))
	l.SetLevel(defaultLogLevel)
	return l
}

func newFormatter(format LogFormat) logrus.Formatter {
	if format == LogFormatJSON {
		return &logrus.JSONFormatter{}
	}
	return &logrus.TextFormatter{DisableColors: true}
}

func (o LogOptions) level() logrus.Level {
	if l, ok := o[levelOpt]; ok {
		if level, err := logrus.ParseLevel(l); err == nil {
			return level
		}
	}
	return defaultLogLevel
}

func (o LogOptions) format() LogFormat {
	if f, ok := o[formatOpt]; ok {
		return LogFormat(f)
	}
	return defaultLogFormat
}

// PopulateLogOpts stores level and format in o. Empty values keep the
// defaults; invalid ones are reported and ignored.
func PopulateLogOpts(o LogOptions, level string, format string) {
	if level != "" {
		if _, err := logrus.ParseLevel(level); err != nil {
			DefaultLogger.WithError(err).Warn("Ignoring user-configured log level")
		} else {
			o[levelOpt] = level
		}
	}
	if format != "" {
		f := LogFormat(strings.ToLower(format))
		if slices.Contains(logFormats, f) {
			o[formatOpt] = string(f)
		} else {
			DefaultLogger.WithError(fmt.Errorf("unknown log format %q, expected one of %v", format, logFormats)).
				Warn("Ignoring user-configured log format")
		}
	}
}

// SetupLogging applies o to the default logger. debug overrides the
// configured level.
func SetupLogging(o LogOptions, debug bool) {
	DefaultLogger.SetFormatter(newFormatter(o.format()))
	DefaultLogger.SetOutput(os.Stderr)
	if debug {
		DefaultLogger.SetLevel(logrus.DebugLevel)
	} else {
		DefaultLogger.SetLevel(o.level())
	}
	logrus.SetLevel(logrus.PanicLevel)
}

// SetOutput redirects the default logger, mostly useful in tests.
func SetOutput(w io.Writer) {
	DefaultLogger.SetOutput(w)
}

func GetLogLevel() logrus.Level {
	return DefaultLogger.GetLevel()
}

func SetLogLevel(level logrus.Level) {
	DefaultLogger.SetLevel(level)
}

func GetLogger() logrus.FieldLogger {
	return DefaultLogger
}

// Subsys returns the default logger tagged with a subsystem field.
func Subsys(name string) logrus.FieldLogger {
	return DefaultLogger.WithField(logfields.LogSubsys, name)
}
