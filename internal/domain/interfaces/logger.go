// Package interfaces defines core domain contracts.
//
//nolint:revive // Package name 'interfaces' is intentional for domain layer
package interfaces

// Logger is the structured logging port used by services, orchestrators and
// store adapters. Implementations must be safe for concurrent use.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is one key/value pair attached to a log record
type Field struct {
	Key   string
	Value any
}

// F creates a new Field
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Err attaches an error under the "error" key
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// NoOpLogger discards everything (useful for tests)
type NoOpLogger struct{}

// Debug implements Logger
func (n *NoOpLogger) Debug(_ string, _ ...Field) {}

// Info implements Logger
func (n *NoOpLogger) Info(_ string, _ ...Field) {}

// Warn implements Logger
func (n *NoOpLogger) Warn(_ string, _ ...Field) {}

// Error implements Logger
func (n *NoOpLogger) Error(_ string, _ ...Field) {}
