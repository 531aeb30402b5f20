package strategyregistry

import (
	"testing"

	"daybacktest/internal/strategy"
)

func TestRegisterAndBuild(t *testing.T) {
	r := New()
	if err := r.Register("buy_and_hold", func(params map[string]any) (strategy.Strategy, error) {
		return &strategy.BuyAndHold{}, nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	s, err := r.Build("buy_and_hold", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if s == nil {
		t.Fatal("expected non-nil strategy")
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := New()
	factory := func(params map[string]any) (strategy.Strategy, error) { return &strategy.BuyAndHold{}, nil }
	if err := r.Register("x", factory); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("x", factory); err == nil {
		t.Fatal("expected error registering duplicate name")
	}
}

func TestBuildUnknownFails(t *testing.T) {
	r := New()
	if _, err := r.Build("nope", nil); err == nil {
		t.Fatal("expected error building unknown strategy")
	}
}

func TestDefaultRegistryListsBuiltins(t *testing.T) {
	r := Default()
	names := r.List()
	if len(names) != 2 {
		t.Fatalf("expected 2 builtin strategies, got %v", names)
	}
}
