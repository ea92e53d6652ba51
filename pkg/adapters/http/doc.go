/*
Package http exposes machines over a small JSON API built on chi.

Persisted configuration is read and edited through the fleet manager; live
state and transitions go through the driver loop so machines are only touched
from the goroutine that owns them. Transition events can be followed per
machine as Server-Sent Events.
*/
package http
