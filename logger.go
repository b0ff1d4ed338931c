// logger.go - Leveled diagnostic logging shared by the emulated components

package main

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// LogLevel controls which Logger calls actually produce output.
type LogLevel int

const (
	LogSilent LogLevel = iota
	LogWarn
	LogInfo
	LogTrace
)

// Logger is a small mutex-guarded wrapper around the standard library
// logger. Components hold a *Logger rather than calling fmt/log directly;
// main.go creates one Logger that every component shares, so its level
// (set with -trace) applies to all of them at once.
type Logger struct {
	mu     sync.Mutex
	level  LogLevel
	prefix string
	out    *log.Logger
}

// NewLogger creates a Logger that writes to stderr with the given prefix.
func NewLogger(prefix string, level LogLevel) *Logger {
	return &Logger{
		level:  level,
		prefix: prefix,
		out:    log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) log(level LogLevel, tag, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level > l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.out.Printf("[%s][%s] %s", l.prefix, tag, msg)
}

func (l *Logger) Warnf(format string, args ...interface{})  { l.log(LogWarn, "WARN", format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log(LogInfo, "INFO", format, args...) }
func (l *Logger) Tracef(format string, args ...interface{}) { l.log(LogTrace, "TRACE", format, args...) }
