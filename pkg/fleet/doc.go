/*
Package fleet manages the persisted configuration of many machines.

It serializes access per machine ID with reference-counted local locks,
optionally backed by a ports.ConfigLocker when several replicas share one
store, validates initial state edits against the variant registry, and spawns
started machines from stored configs.
*/
package fleet
