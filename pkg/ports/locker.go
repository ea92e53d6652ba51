package ports

import (
	"context"
	"time"
)

// ReleaseFunc gives a held config lock back. Calling it after the lock has
// expired and been taken by another replica leaves the new holder alone.
type ReleaseFunc func(ctx context.Context) error

// ConfigLocker serializes config writes for one machine ID across stagehand
// replicas that share a ConfigStore. The in-process lock in fleet.Manager
// only covers a single replica; this one is taken inside it.
type ConfigLocker interface {
	// Lock waits until the lock for machineID is held or ctx is done. The
	// ttl caps how long a replica that died while holding it blocks the rest.
	Lock(ctx context.Context, machineID string, ttl time.Duration) (ReleaseFunc, error)
}
