package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs the outcome of one GraphQL POST
func LogRequest(l Logger, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"url":         url,
		"status_code": statusCode,
		"duration":    duration,
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		l.DebugWithFields("GraphQL request completed", fields)
	case statusCode >= 500:
		l.ErrorWithFields("GraphQL request server error", fields)
	default:
		l.WarnWithFields("GraphQL request failed", fields)
	}
}

// LogCheckpoint logs a persisted cursor
func LogCheckpoint(l Logger, entity string, cursor *string, total int) {
	l.WithFields(map[string]interface{}{
		"entity": entity,
		"cursor": cursor,
		"total":  total,
	}).Info("Checkpoint saved")
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (n nopLogger) Debug(string)                                   {}
func (n nopLogger) Info(string)                                    {}
func (n nopLogger) Warn(string)                                    {}
func (n nopLogger) Error(string)                                   {}
func (n nopLogger) Fatal(string)                                   {}
func (n nopLogger) WithField(string, interface{}) Logger           { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger       { return n }
func (n nopLogger) WithError(error) Logger                         { return n }
func (n nopLogger) WithContext(context.Context) Logger             { return n }
func (n nopLogger) DebugWithFields(string, map[string]interface{}) {}
func (n nopLogger) InfoWithFields(string, map[string]interface{})  {}
func (n nopLogger) WarnWithFields(string, map[string]interface{})  {}
func (n nopLogger) ErrorWithFields(string, map[string]interface{}) {}
func (n nopLogger) FatalWithFields(string, map[string]interface{}) {}
func (n nopLogger) GetZerolog() *zerolog.Logger                    { z := zerolog.Nop(); return &z }
