package workspace

import "idfcore/pkg/domain"

// Logger is the structured logging surface the workspace writes to. It is
// satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ProgressFunc is invoked after each record of a bulk add. It must not call
// back into the workspace.
type ProgressFunc func(done, total int)

// Option configures a Store.
type Option func(*Store)

// WithStrictness sets the validity level enforced on mutations.
func WithStrictness(level domain.Strictness) Option {
	return func(s *Store) { s.strictness = level }
}

// WithLogger routes workspace diagnostics to logger.
func WithLogger(logger Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver registers an observer at construction.
func WithObserver(o domain.Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.subscribe(o)
		}
	}
}

// WithFastNaming makes synthesized names unique uuid strings.
func WithFastNaming(on bool) Option {
	return func(s *Store) { s.fastNaming = on }
}

// WithProgress installs a bulk-add progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Store) { s.progress = fn }
}

// WithDirectOrder starts the store in direct order mode.
func WithDirectOrder() Option {
	return func(s *Store) { s.order.SetDirectOrder(nil) }
}
