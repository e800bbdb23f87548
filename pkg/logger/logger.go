package logger

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type contextKey string

// RequestIDKey is the context key carrying the eligibility request ID
const RequestIDKey contextKey = "request_id"

// Logger wraps logrus.Logger with additional functionality
type Logger struct {
	*logrus.Logger
}

// New creates a new logger instance
func New(level string) *Logger {
	return NewWithOutput(level, os.Stdout)
}

// NewWithOutput creates a logger writing JSON lines to out
func NewWithOutput(level string, out io.Writer) *Logger {
	log := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	log.SetOutput(out)

	return &Logger{Logger: log}
}

// Discard returns a logger that drops everything, for tests
func Discard() *Logger {
	return NewWithOutput("panic", io.Discard)
}

// WithRequestID creates a new logger entry with request ID field
func (l *Logger) WithRequestID(requestID string) *logrus.Entry {
	return l.Logger.WithField("request_id", requestID)
}

// WithComponent creates a new logger entry with component name field
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.Logger.WithField("component", component)
}

// WithContext creates a logger with context-aware fields
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithFields(logrus.Fields{})
	if requestID := ctx.Value(RequestIDKey); requestID != nil {
		entry = entry.WithField("request_id", requestID)
	}
	return entry
}

// Eligibility logs the outcome of one eligibility evaluation
func (l *Logger) Eligibility(ctx context.Context, requestID string, inforce bool, details map[string]interface{}) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"eligibility": true,
		"request_id":  requestID,
		"inforce":     inforce,
		"details":     details,
	}).Info("Eligibility evaluated")
}

// Publish logs an event publication attempt
func (l *Logger) Publish(ctx context.Context, subject, eventID string, attempt int, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"publish":  true,
		"subject":  subject,
		"event_id": eventID,
		"attempt":  attempt,
	})

	if err != nil {
		entry.WithError(err).Error("Event publish failed")
		return
	}
	entry.Info("Event published")
}
