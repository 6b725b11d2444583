package httpmw

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/bordumb/RadicleApp/internal/common/logger"
	"github.com/bordumb/RadicleApp/internal/tracing"
)

// OtelTracing opens a server span per route. Spans carry the repository and
// session the route addresses, so a browser request can be followed into the
// seed node calls it triggers. No-op while no exporter is configured.
func OtelTracing(serverName string) gin.HandlerFunc {
	tracer := tracing.Tracer(serverName)

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx, span := tracer.Start(c.Request.Context(), serverName+" "+c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(semconv.HTTPRequestMethodKey.String(c.Request.Method), semconv.HTTPRouteKey.String(route)),
		)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(routeAttributes(c)...)
		span.SetAttributes(semconv.HTTPResponseStatusCodeKey.Int(status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// routeAttributes names what the request addressed: the repository for
// /repos routes, the tree or diff session for session routes, and the
// request id assigned by RequestLogger.
func routeAttributes(c *gin.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	rid := c.Param("rid")
	if rid != "" {
		attrs = append(attrs, attribute.String("radicle.rid", rid))
	}
	// Under /repos an :id is an issue or patch, not a session.
	if id := c.Param("id"); id != "" && rid == "" {
		attrs = append(attrs, attribute.String("browser.session_id", id))
	}
	if rev := c.Param("rev"); rev != "" {
		attrs = append(attrs, attribute.String("radicle.revision", rev))
	}
	if reqID := logger.RequestID(c.Request.Context()); reqID != "" {
		attrs = append(attrs, attribute.String("request.id", reqID))
	}
	return attrs
}
