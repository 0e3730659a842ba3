package core

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
)

// Logger provides enhanced logging capabilities for The Keep
type Logger struct {
	*slog.Logger
	mu       *sync.Mutex
	features map[string]*slog.Logger
}

// NewLogger creates a new logger instance
func NewLogger() *Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	return &Logger{
		Logger:   slog.New(handler),
		mu:       &sync.Mutex{},
		features: make(map[string]*slog.Logger),
	}
}

// NewTestLogger creates a logger that discards all output, for tests
func NewTestLogger() *Logger {
	handler := slog.NewTextHandler(io.Discard, nil)

	return &Logger{
		Logger:   slog.New(handler),
		mu:       &sync.Mutex{},
		features: make(map[string]*slog.Logger),
	}
}

// ForFeature returns a logger specific to a feature
func (l *Logger) ForFeature(featureName string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	featureLogger, exists := l.features[featureName]
	if !exists {
		featureLogger = l.Logger.With("feature", featureName)
		l.features[featureName] = featureLogger
	}

	return &Logger{
		Logger:   featureLogger,
		mu:       l.mu,
		features: l.features,
	}
}

// WithContext returns a logger carrying the request ID from the context
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	if requestID := middleware.GetReqID(ctx); requestID != "" {
		return &Logger{
			Logger:   l.Logger.With("request_id", requestID),
			mu:       l.mu,
			features: l.features,
		}
	}

	return l
}

// WithUser returns a logger with user context
func (l *Logger) WithUser(userID int, email string) *Logger {
	return &Logger{
		Logger:   l.Logger.With("user_id", userID, "user_email", email),
		mu:       l.mu,
		features: l.features,
	}
}
