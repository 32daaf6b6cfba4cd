package emit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by creating one OpenTelemetry span per event.
//
// Each event becomes a span with:
//   - Span name: event.Msg (e.g., "stage_completed", "route_decided")
//   - Attributes: run ID, step, stage and all event.Meta fields under the
//     "draftloop." prefix
//   - Timestamps: event.Timestamp, extended by duration_ms when present
//   - Status: Error if event.Meta["error"] exists
//
// Usage:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	emitter := emit.NewOTelEmitter(tp.Tracer("draftloop"))
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter backed by tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates and immediately ends a span for the event.
func (o *OTelEmitter) Emit(event Event) {
	var startOpts []trace.SpanStartOption
	var endOpts []trace.SpanEndOption
	if !event.Timestamp.IsZero() {
		startOpts = append(startOpts, trace.WithTimestamp(event.Timestamp))
		end := event.Timestamp
		if ms, ok := event.Meta["duration_ms"].(int64); ok {
			end = end.Add(time.Duration(ms) * time.Millisecond)
		}
		endOpts = append(endOpts, trace.WithTimestamp(end))
	}

	_, span := o.tracer.Start(context.Background(), event.Msg, startOpts...)
	defer span.End(endOpts...)

	span.SetAttributes(
		attribute.String("draftloop.run_id", event.RunID),
		attribute.Int("draftloop.step", event.Step),
		attribute.String("draftloop.stage", event.NodeID),
	)
	o.addMetadataAttributes(span, event.Meta)

	if msg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, msg)
		span.RecordError(errors.New(msg))
	}
}

// Flush forces export of pending spans when provider supports it, as the SDK
// TracerProvider does. Call before shutdown.
func (o *OTelEmitter) Flush(ctx context.Context, provider trace.TracerProvider) error {
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := provider.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

// addMetadataAttributes converts event metadata to span attributes.
func (o *OTelEmitter) addMetadataAttributes(span trace.Span, meta map[string]interface{}) {
	for key, value := range meta {
		attrKey := "draftloop." + key
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}
}
