package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/vyrodovalexey/nacmval/internal/nacm"
	"github.com/vyrodovalexey/nacmval/internal/observability"
)

// Config represents the audit logging configuration.
type Config struct {
	// Enabled enables audit logging. A disabled config yields a no-op
	// logger; obliged decisions are then counted but not recorded.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Output is the destination: "stdout", "stderr" or a file path.
	// Defaults to stderr so single-request decision output owns stdout.
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// Logger records obliged decisions as JSON lines. It satisfies the
// decision engine's DecisionRecorder interface.
type Logger interface {
	RecordDecision(ctx context.Context, record *nacm.DecisionRecord)
	Close() error
}

// logger implements Logger over an io.Writer.
type logger struct {
	writer io.Writer
	closer io.Closer
	log    observability.Logger
	mu     sync.Mutex
}

// LoggerOption is a functional option for the audit logger.
type LoggerOption func(*logger)

// WithLogger sets the diagnostics logger used for write failures.
func WithLogger(log observability.Logger) LoggerOption {
	return func(l *logger) {
		l.log = log
	}
}

// NewLogger creates an audit logger from the given configuration.
func NewLogger(cfg *Config, opts ...LoggerOption) (Logger, error) {
	if cfg == nil || !cfg.Enabled {
		return NewNoopLogger(), nil
	}

	l := &logger{log: observability.NopLogger()}
	for _, opt := range opts {
		opt(l)
	}

	switch cfg.Output {
	case "stdout":
		l.writer = os.Stdout
	case "stderr", "":
		l.writer = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log %s: %w", cfg.Output, err)
		}
		l.writer = f
		l.closer = f
	}

	return l, nil
}

// RecordDecision writes one decision record as a JSON line.
func (l *logger) RecordDecision(ctx context.Context, record *nacm.DecisionRecord) {
	event := NewEvent(record)

	data, err := json.Marshal(event)
	if err != nil {
		l.log.Error("failed to encode audit event", observability.Error(err))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.writer.Write(append(data, '\n')); err != nil {
		l.log.Error("failed to write audit event", observability.Error(err))
	}
}

// Close closes the underlying file, if any.
func (l *logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// noopLogger discards all records.
type noopLogger struct{}

// NewNoopLogger returns a logger that discards all records.
func NewNoopLogger() Logger {
	return &noopLogger{}
}

// RecordDecision implements Logger.
func (n *noopLogger) RecordDecision(ctx context.Context, record *nacm.DecisionRecord) {}

// Close implements Logger.
func (n *noopLogger) Close() error { return nil }
