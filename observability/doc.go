// Package observability wires OpenTelemetry tracing and metrics for the
// REST client.
//
// InitTracer and InitMeter export over OTLP/HTTP. The client opens one
// client span per request (StartSpan), propagates the trace context in the
// outgoing headers (InjectHeaders) and records Metrics when given one.
package observability
