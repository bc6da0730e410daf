// Package slog lets log/slog handlers serve as logger.Logger, for services
// that route their logs through slog instead of zerolog.
package slog

import (
	"io"
	"log/slog"
)

// SlogHandler adapts a log/slog handler to logger.Logger.
type SlogHandler struct {
	logger *slog.Logger
}

func New(h slog.Handler) *SlogHandler {
	return &SlogHandler{logger: slog.New(h)}
}

// NewJSON writes JSON records to w, at debug level when verbose and at info
// level otherwise.
func NewJSON(w io.Writer, verbose bool) *SlogHandler {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// With returns a handler that adds args to every record.
func (handler *SlogHandler) With(args ...any) *SlogHandler {
	return &SlogHandler{logger: handler.logger.With(args...)}
}

// Slog returns the underlying slog.Logger.
func (handler *SlogHandler) Slog() *slog.Logger {
	return handler.logger
}

func (handler *SlogHandler) Error(msg string, args ...any) {
	handler.logger.Error(msg, args...)
}

func (handler *SlogHandler) Warn(msg string, args ...any) {
	handler.logger.Warn(msg, args...)
}

func (handler *SlogHandler) Info(msg string, args ...any) {
	handler.logger.Info(msg, args...)
}

func (handler *SlogHandler) Debug(msg string, args ...any) {
	handler.logger.Debug(msg, args...)
}
