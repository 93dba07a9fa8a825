package events

import (
	"github.com/ThreeDotsLabs/watermill"

	"github.com/yourusername/cat-engine/internal/pkg/logger"
)

// watermillLogger routes watermill's internal logging to zap
type watermillLogger struct {
	log *logger.Logger
}

// NewWatermillLogger adapts the application logger to watermill.LoggerAdapter
func NewWatermillLogger(log *logger.Logger) watermill.LoggerAdapter {
	return &watermillLogger{log: log.Component("watermill")}
}

func fieldsToKV(fields watermill.LogFields) []interface{} {
	kv := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return kv
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.log.Error(msg, append(fieldsToKV(fields), "error", err)...)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.log.Info(msg, fieldsToKV(fields)...)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.log.Debug(msg, fieldsToKV(fields)...)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.log.Debug(msg, fieldsToKV(fields)...)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{log: l.log.With(fieldsToKV(fields)...)}
}
