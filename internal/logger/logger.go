// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the structured logging used throughout the dedup
// engine. Every accepted and rejected pair (spec §6) goes through one of the
// severity-tagged helpers below so that a single format/level switch governs
// both the CLI and the library.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Severity names, ordered least to most severe. These mirror the five levels
// the dedup driver and transaction distinguish: TRACE for per-block detail,
// DEBUG for internal bookkeeping, INFO for accepted pairs and the final
// "deduplicated N blocks" line, WARNING for skipped/rejected pairs, ERROR for
// failures that stop a run (a post-commit invariant violation).
const (
	TRACE   = "TRACE"
	DEBUG   = "DEBUG"
	INFO    = "INFO"
	WARNING = "WARNING"
	ERROR   = "ERROR"
	OFF     = "OFF"
)

const traceLevel slog.Level = slog.LevelDebug - 4

var severityLevels = map[string]slog.Level{
	TRACE:   traceLevel,
	DEBUG:   slog.LevelDebug,
	INFO:    slog.LevelInfo,
	WARNING: slog.LevelWarn,
	ERROR:   slog.LevelError,
}

const timeLayout = "2006/01/02 15:04:05.000000"

// loggerFactory builds the slog.Handler used by the package-level logger.
type loggerFactory struct {
	format string // "text" or "json"
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, level *slog.LevelVar, prefix string) slog.Handler {
	return &severityHandler{
		w:      w,
		level:  level,
		json:   f.format == "json",
		prefix: prefix,
	}
}

// severityHandler renders records as either:
//
//	time="2006/01/02 15:04:05.000000" severity=INFO message="prefix: text"
//
// or, in JSON mode:
//
//	{"timestamp":{"seconds":...,"nanos":...},"severity":"INFO","message":"prefix: text"}
//
// This is deliberately not slog's built-in text/JSON layout: the severity
// names above (TRACE/WARNING) don't exist in stdlib slog, and every consumer
// of these logs greps for this exact shape.
type severityHandler struct {
	mu     sync.Mutex
	w      io.Writer
	level  *slog.LevelVar
	json   bool
	prefix string
}

func (h *severityHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *severityHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	severity := severityName(r.Level)
	message := h.prefix + r.Message

	if h.json {
		renderJSON(h.w, r.Time, severity, message)
	} else {
		renderText(h.w, r.Time, severity, message)
	}
	return nil
}

func (h *severityHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *severityHandler) WithGroup(_ string) slog.Handler      { return h }

func severityName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return ERROR
	case l >= slog.LevelWarn:
		return WARNING
	case l >= slog.LevelInfo:
		return INFO
	case l >= slog.LevelDebug:
		return DEBUG
	default:
		return TRACE
	}
}

func renderText(w io.Writer, t time.Time, severity, message string) {
	fmt.Fprintf(w, "time=%q severity=%s message=%q\n", t.Format(timeLayout), severity, message)
}

func renderJSON(w io.Writer, t time.Time, severity, message string) {
	fmt.Fprintf(w, "{\"timestamp\":{\"seconds\":%d,\"nanos\":%d},\"severity\":%q,\"message\":%q}\n",
		t.Unix(), t.Nanosecond(), severity, message)
}

var (
	defaultLoggerFactory = &loggerFactory{format: "text"}
	programLevel         = new(slog.LevelVar)
	defaultLogger        = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, programLevel, ""))
	mu                   sync.Mutex
)

// Init configures the package-level logger's format ("text" or "json") and
// minimum severity. Safe to call more than once; the CLI calls it once at
// startup after parsing cfg.Config.
func Init(format string, severity string) {
	mu.Lock()
	defer mu.Unlock()

	defaultLoggerFactory.format = format
	setLoggingLevel(severity, programLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, programLevel, ""))
}

func setLoggingLevel(level string, v *slog.LevelVar) {
	if level == OFF {
		// slog has no "disabled" level; push the threshold above Error so
		// nothing at or below ERROR passes Enabled().
		v.Set(slog.LevelError + 4)
		return
	}
	if l, ok := severityLevels[level]; ok {
		v.Set(l)
		return
	}
	v.Set(slog.LevelInfo)
}

func Tracef(format string, args ...any) { logAt(traceLevel, format, args...) }
func Debugf(format string, args ...any) { logAt(slog.LevelDebug, format, args...) }
func Infof(format string, args ...any)  { logAt(slog.LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { logAt(slog.LevelWarn, format, args...) }
func Errorf(format string, args ...any) { logAt(slog.LevelError, format, args...) }

func logAt(level slog.Level, format string, args ...any) {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()

	if !l.Enabled(context.Background(), level) {
		return
	}
	l.Log(context.Background(), level, fmt.Sprintf(format, args...))
}
