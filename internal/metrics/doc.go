// Package metrics defines and registers the service's Prometheus
// metrics.
package metrics
