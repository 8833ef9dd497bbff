package core

import (
	"time"

	"idfcore/internal/archive"
	"idfcore/pkg/domain"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger routes service and workspace logs to logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics installs a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSnapshotStore persists the workspace after every committed mutation.
func WithSnapshotStore(store domain.SnapshotStore) Option {
	return func(s *Service) { s.snapshots = store }
}

// WithArchive enables ExportArchive and ImportArchive.
func WithArchive(a *archive.Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

// WithClock overrides the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
