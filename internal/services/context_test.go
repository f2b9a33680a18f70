package services_test

import (
	"context"
	"testing"

	"zapzap/internal/services"
)

func TestContextHelpersRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithVideoID(ctx, "vid-1")
	ctx = services.WithStage(ctx, "archive")
	ctx = services.WithRequestID(ctx, "req-9")

	if id, ok := services.VideoIDFromContext(ctx); !ok || id != "vid-1" {
		t.Fatalf("unexpected video id %q (%v)", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "archive" {
		t.Fatalf("unexpected stage %q (%v)", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-9" {
		t.Fatalf("unexpected request id %q (%v)", rid, ok)
	}
}

func TestContextHelpersIgnoreEmptyValues(t *testing.T) {
	ctx := services.WithVideoID(context.Background(), "")
	ctx = services.WithStage(ctx, "")
	if _, ok := services.VideoIDFromContext(ctx); ok {
		t.Fatal("expected no video id")
	}
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage")
	}
}
