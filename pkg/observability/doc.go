/*
Package observability provides listeners for monitoring flow executions.

Logger writes every lifecycle notification to a structured logger, masking attributes whose
keys look sensitive. Metrics exports Prometheus counters and a request latency histogram.
Both are plain listeners: register them with a listener.Loader like any other.
*/
package observability
