package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/ports"
)

type loggingMiddleware struct {
	next   ports.ConfigStore
	logger *slog.Logger
}

// NewLoggingMiddleware logs every store call at debug level and failures at
// warn level. A missing config is not a failure.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ports.ConfigStore) ports.ConfigStore {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

func (m *loggingMiddleware) log(ctx context.Context, op, machineID string, start time.Time, err error) {
	attrs := []any{"op", op, "duration", time.Since(start)}
	if machineID != "" {
		attrs = append(attrs, "machine_id", machineID)
	}
	if err != nil && !errors.Is(err, domain.ErrConfigNotFound) {
		m.logger.WarnContext(ctx, "Config store call failed", append(attrs, "err", err)...)
		return
	}
	m.logger.DebugContext(ctx, "Config store call", attrs...)
}

func (m *loggingMiddleware) Save(ctx context.Context, machineID string, cfg *domain.MachineConfig) error {
	start := time.Now()
	err := m.next.Save(ctx, machineID, cfg)
	m.log(ctx, "save", machineID, start, err)
	return err
}

func (m *loggingMiddleware) Load(ctx context.Context, machineID string) (*domain.MachineConfig, error) {
	start := time.Now()
	cfg, err := m.next.Load(ctx, machineID)
	m.log(ctx, "load", machineID, start, err)
	return cfg, err
}

func (m *loggingMiddleware) Delete(ctx context.Context, machineID string) error {
	start := time.Now()
	err := m.next.Delete(ctx, machineID)
	m.log(ctx, "delete", machineID, start, err)
	return err
}

func (m *loggingMiddleware) List(ctx context.Context) ([]string, error) {
	start := time.Now()
	ids, err := m.next.List(ctx)
	m.log(ctx, "list", "", start, err)
	return ids, err
}
