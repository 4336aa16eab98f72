// Package metrics counts coordination activity and writes it as a
// Prometheus textfile for node_exporter's textfile collector.
//
// A [Recorder] subscribes to the event bus for the life of one command and
// is written once at exit. Counters therefore describe the last invocation;
// the experiment and mailbox gauges are recomputed from storage each time
// and describe the whole data root.
package metrics
