package main

import (
	"io"
	"log"
	"os"
	"time"
)

const logDate = `2006-01-02T15:04:05.000-07:00`

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

// newLogger returns the logger handed to the service packages. Their
// diagnostics are only shown with --verbose.
func newLogger(cfg *Config) *log.Logger {
	if !cfg.verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
}
