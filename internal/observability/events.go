package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

const (
	HeaderRequestID = "x-request-id"
	HeaderTraceID   = "trace_id"
)

// TraceHeaders returns envelope headers that tie an envelope to the request
// and the active trace in ctx. Empty values are left out.
func TraceHeaders(ctx context.Context, requestID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers[HeaderRequestID] = requestID
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		headers[HeaderTraceID] = sc.TraceID().String()
	}
	return headers
}
