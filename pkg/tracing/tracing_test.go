package tracing

import (
	"context"
	"testing"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if shutdown == nil {
		t.Fatal("Init returned nil shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	tr := Tracer("test")
	_, span := tr.Start(context.Background(), "span")
	span.End()
}

func TestInit_Enabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: true, ServiceName: "test-service", SamplingRate: 1})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if shutdown == nil {
		t.Fatal("Init returned nil shutdown func")
	}
	defer shutdown(context.Background())

	tr := Tracer("test")
	_, span := tr.Start(context.Background(), "span")
	span.End()
}

func TestInit_EnabledDefaultsServiceName(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: true})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer shutdown(context.Background())
}
