package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&ContextHandler{Handler: slog.NewJSONHandler(&buf, nil)})

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	t.Run("context call carries trace and span ids", func(t *testing.T) {
		buf.Reset()
		logger.InfoContext(ctx, "handling request")

		var record map[string]any
		if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
			t.Fatalf("failed to decode log line: %v", err)
		}
		if record["trace_id"] != traceID.String() {
			t.Errorf("expected trace_id %s, got %v", traceID, record["trace_id"])
		}
		if record["span_id"] != spanID.String() {
			t.Errorf("expected span_id %s, got %v", spanID, record["span_id"])
		}
	})

	t.Run("no span context means no trace attributes", func(t *testing.T) {
		buf.Reset()
		logger.Info("startup")

		var record map[string]any
		if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
			t.Fatalf("failed to decode log line: %v", err)
		}
		if _, ok := record["trace_id"]; ok {
			t.Error("expected no trace_id without a span in context")
		}
	})
}
