// Package metrics provides internal metrics collection.
// Collectors are explicitly owned instances registered against an injected
// prometheus.Registerer; there is no process-global metric state.
package metrics
