package toolkit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"marketaoc/pkg/core/facade"
	"marketaoc/pkg/core/health"
)

type mockMacro struct{}

func (mockMacro) GetMacroData(ctx context.Context, endDate string) (facade.MacroIndicators, error) {
	return facade.MacroIndicators{GDP: 5.1, CPI: 2.0}, nil
}

func TestDefaultRegistry_DispatchMacro(t *testing.T) {
	reg := health.NewRegistry(3, time.Minute)
	f := facade.New(facade.Config{Macro: []facade.MacroProvider{mockMacro{}}, Timeout: time.Second}, reg)
	tools := NewDefaultRegistry(f)

	out, err := tools.Dispatch(context.Background(), "fetch_macro_data", `{"query_date":"2026-07-31"}`)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	var parsed facade.MacroIndicators
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("expected valid JSON result, got %s (%v)", out, err)
	}
	if parsed.GDP != 5.1 {
		t.Fatalf("expected GDP 5.1, got %v", parsed.GDP)
	}
}

func TestDefaultRegistry_UnknownToolIsHardError(t *testing.T) {
	reg := health.NewRegistry(3, time.Minute)
	f := facade.New(facade.Config{}, reg)
	tools := NewDefaultRegistry(f)

	if _, err := tools.Dispatch(context.Background(), "fetch_nonexistent", "{}"); err == nil {
		t.Fatal("expected error dispatching an unregistered tool name")
	}
}
