// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package logging configures the shared logrus instance used across the
// triage pipeline. It is grounded on switchAILocal's
// internal/logging/global_logger.go: same custom formatter and lumberjack
// rotation, with the gin-specific writer wiring removed since this core has
// no HTTP server of its own.
package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	setupOnce sync.Once
	writerMu  sync.Mutex
	logWriter *lumberjack.Logger
)

// LogFormatter renders one log entry per line:
// [2026-07-29 10:14:04] [a1b2c3d4] [warn ] [safety.go:112] message | key=value
type LogFormatter struct{}

// Format implements logrus.Formatter.
func (f *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	var buffer *bytes.Buffer
	if entry.Buffer != nil {
		buffer = entry.Buffer
	} else {
		buffer = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05")
	message := strings.TrimRight(entry.Message, "\r\n")

	reqID := "--------"
	if id, ok := entry.Data["request_id"].(string); ok && id != "" {
		reqID = id
	}

	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}
	levelStr := fmt.Sprintf("%-5s", level)

	var formatted string
	if entry.Caller != nil {
		formatted = fmt.Sprintf("[%s] [%s] [%s] [%s:%d] %s", timestamp, reqID, levelStr, filepath.Base(entry.Caller.File), entry.Caller.Line, message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] [%s] %s", timestamp, reqID, levelStr, message)
	}

	if len(entry.Data) > 1 || (len(entry.Data) == 1 && entry.Data["request_id"] == nil) {
		first := true
		formatted += " |"
		for k, v := range entry.Data {
			if k == "request_id" {
				continue
			}
			if !first {
				formatted += ","
			}
			formatted += fmt.Sprintf(" %s=%v", k, v)
			first = false
		}
	}
	formatted += "\n"

	buffer.WriteString(formatted)
	return buffer.Bytes(), nil
}

// SetupBaseLogger configures the shared logrus instance. Safe to call
// multiple times; initialization happens only once.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		log.SetOutput(os.Stdout)
		log.SetReportCaller(true)
		log.SetFormatter(&LogFormatter{})
	})
}

// ConfigureLogOutput switches the global log destination between a rotating
// file and stdout.
func ConfigureLogOutput(loggingToFile bool, logDir string) error {
	SetupBaseLogger()

	writerMu.Lock()
	defer writerMu.Unlock()

	if logDir == "" {
		logDir = "logs"
	}

	if loggingToFile {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("logging: failed to create log directory: %w", err)
		}
		if logWriter != nil {
			_ = logWriter.Close()
		}
		logWriter = &lumberjack.Logger{
			Filename:   filepath.Join(logDir, "triage.log"),
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     0,
			Compress:   false,
		}
		log.SetOutput(logWriter)
	} else {
		if logWriter != nil {
			_ = logWriter.Close()
			logWriter = nil
		}
		log.SetOutput(os.Stdout)
	}

	return nil
}

// ForRequest returns a logger entry pre-populated with the request id, the
// convention every stage and adapter in this package uses to correlate log
// lines with a single triage run.
func ForRequest(requestID string) *log.Entry {
	return log.WithField("request_id", requestID)
}

// Close releases the rotating log writer, if any.
func Close() {
	writerMu.Lock()
	defer writerMu.Unlock()
	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
}
