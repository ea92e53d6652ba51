/*
Package observability turns machine and driver events into logs and metrics.

AuditHooks logs every transition through slog. Metrics exposes Prometheus
counters and histograms fed by the machine lifecycle hooks and the driver's
frame hook, and serves them over HTTP.
*/
package observability
