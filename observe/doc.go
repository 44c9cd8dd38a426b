// Package observe provides observability primitives for cache operations.
//
// It is a pure instrumentation library: structured logging, OpenTelemetry
// tracing and metrics, and the exporter setup behind them. The query client
// and the mutation coordinator wrap their fetches and remote calls with a
// Middleware built from an Observer.
package observe
