package observability

import (
	"log/slog"

	"github.com/aretw0/stagehand/pkg/domain"
)

// AuditHooks logs every transition at Info level.
func AuditHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(e *domain.TransitionEvent) {
			logger.Info("state_enter",
				"machine_id", e.MachineID,
				"from", e.From,
				"to", e.To,
			)
		},
		OnStateExit: func(e *domain.TransitionEvent) {
			logger.Info("state_exit",
				"machine_id", e.MachineID,
				"from", e.From,
				"to", e.To,
				"terminal", e.Terminal(),
			)
		},
	}
}
