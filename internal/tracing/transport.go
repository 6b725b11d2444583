package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const seedTracerName = "radicle-seed"

func seedTracer() trace.Tracer {
	return Tracer(seedTracerName)
}

// TraceHTTPRequest starts a span for an HTTP call to a seed node.
// Caller must call span.End() when the response is received.
func TraceHTTPRequest(ctx context.Context, method, path, repoID string) (context.Context, trace.Span) {
	ctx, span := seedTracer().Start(ctx, "http."+method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("radicle.rid", repoID),
	)
	return ctx, span
}

// TraceHTTPResponse records response attributes on the span.
func TraceHTTPResponse(span trace.Span, statusCode int, err error) {
	span.SetAttributes(attribute.Int("http.status_code", statusCode))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// TraceNodeLoad starts a span around one directory listing.
func TraceNodeLoad(ctx context.Context, repoID, revision, path string) (context.Context, trace.Span) {
	ctx, span := seedTracer().Start(ctx, "tree.load",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(
		attribute.String("radicle.rid", repoID),
		attribute.String("radicle.revision", revision),
		attribute.String("tree.path", path),
	)
	return ctx, span
}

// TraceDiffPage starts a span around one diff page fetch.
func TraceDiffPage(ctx context.Context, repoID, commitID, pageToken string) (context.Context, trace.Span) {
	ctx, span := seedTracer().Start(ctx, "diff.page",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(
		attribute.String("radicle.rid", repoID),
		attribute.String("radicle.commit", commitID),
		attribute.String("diff.page_token", pageToken),
	)
	return ctx, span
}

// EndWithError records err, if any, and ends the span.
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
