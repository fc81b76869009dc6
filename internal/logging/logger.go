/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logging provides the process-wide structured loggers used across
// the engine control plane: an info-level default logger and a monitor
// logger that records one line per retired task for offline analysis.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logSubsys = "subsys"

var (
	defaultLogger = initDefaultLogger()
	monitorLogger = initMonitorLogger()

	defaultLogLevel  = logrus.InfoLevel
	defaultLogFormat = &logrus.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: false,
	}
)

func initDefaultLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(defaultLogFormat)
	logger.SetLevel(defaultLogLevel)
	return logger
}

// initMonitorLogger returns a logger dedicated to per-task completion
// records, rotated independently of the debug stream so platform monitoring
// can tail it without the noise of request-by-request scheduling logs.
func initMonitorLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	logPath := os.Getenv("MONITOR_LOG_FILE")
	if logPath == "" {
		logPath = "engine-monitor.log"
	}
	if dir := filepath.Dir(logPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			logger.SetOutput(os.Stdout)
			return logger
		}
	}
	logger.SetOutput(io.Writer(&lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   false,
	}))
	return logger
}

// SetLevel adjusts the default logger's verbosity; the engineserver
// command parses it from its --log-level flag at startup.
func SetLevel(level logrus.Level) {
	defaultLogger.SetLevel(level)
}

// NewLogger allocates a log entry scoped to a subsystem name, e.g.
// logging.NewLogger("scheduler").
func NewLogger(subsys string) *logrus.Entry {
	if subsys == "" {
		return logrus.NewEntry(defaultLogger)
	}
	return defaultLogger.WithField(logSubsys, subsys)
}

// Monitor returns the structured per-task completion logger.
func Monitor() *logrus.Entry {
	return logrus.NewEntry(monitorLogger)
}
