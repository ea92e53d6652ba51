package http

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/pkg/domain"
)

// StreamManager fans transition events out to SSE subscribers per machine.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // machine ID -> set of channels
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a buffered channel for machineID. The returned func
// unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(machineID string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	if _, ok := sm.subscribers[machineID]; !ok {
		sm.subscribers[machineID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[machineID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[machineID]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, machineID)
			}
		}
	}
}

// Subscribers returns the number of subscribers for machineID.
func (sm *StreamManager) Subscribers(machineID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[machineID])
}

// Broadcast sends msg to every subscriber of machineID without blocking.
func (sm *StreamManager) Broadcast(machineID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[machineID] {
		select {
		case ch <- msg:
		default:
			// Slow client.
			sm.logger.Warn("SSE: Client buffer full, dropping message", "machine_id", machineID)
		}
	}
}

// Hooks returns lifecycle hooks that broadcast every event as JSON.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	publish := func(e *domain.TransitionEvent) {
		if sm.Subscribers(e.MachineID) == 0 {
			return
		}
		data, err := json.Marshal(e)
		if err != nil {
			sm.logger.Error("SSE: Failed to encode event", "err", err)
			return
		}
		sm.Broadcast(e.MachineID, string(data))
	}
	return domain.LifecycleHooks{
		OnStateEnter: publish,
		OnStateExit:  publish,
	}
}
