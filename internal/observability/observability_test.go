package observability

import (
	"context"
	"errors"
	"testing"
)

func TestInit_Disabled(t *testing.T) {
	if err := Init(Config{ServiceName: "test", Enabled: false}); err != nil {
		t.Fatalf("Init disabled: %v", err)
	}
	if err := Init(Config{ServiceName: "test", Enabled: true, ExporterType: "none"}); err != nil {
		t.Fatalf("Init with none exporter: %v", err)
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	err := Init(Config{ServiceName: "test", Enabled: true, ExporterType: "jaeger"})
	if err == nil {
		t.Error("expected error for unknown exporter type")
	}
}

func TestStartSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test.operation", map[string]any{
		"identity": "whatsapp:+1555",
		"count":    3,
		"ratio":    0.5,
		"flag":     true,
	})
	if ctx == nil {
		t.Fatal("nil context")
	}

	span.SetAttribute("intent", "start_quiz")
	span.SetError(errors.New("boom"))
	span.End()
	// End is idempotent.
	span.End()
}

func TestShutdown_WithoutInit(t *testing.T) {
	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown without provider: %v", err)
	}
}

func TestParseHeaders(t *testing.T) {
	got := parseHeaders("a=1, b = 2")
	if got["a"] != "1" || got["b"] != "2" {
		t.Errorf("parseHeaders = %v", got)
	}
	if parseHeaders("") != nil {
		t.Error("empty input should yield nil")
	}
}
