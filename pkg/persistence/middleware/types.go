// Package middleware wraps a ports.ConfigStore with cross-cutting behavior.
package middleware

import "github.com/aretw0/stagehand/pkg/ports"

// Middleware allows wrapping a ConfigStore to add behavior.
type Middleware func(ports.ConfigStore) ports.ConfigStore

// Chain wraps store with mws. The first middleware is the outermost.
func Chain(store ports.ConfigStore, mws ...Middleware) ports.ConfigStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
