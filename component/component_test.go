package component

import (
	"context"
	"fmt"
	"testing"
)

// mockComponent implements Component for testing.
type mockComponent struct {
	name       string
	startErr   error
	stopErr    error
	health     Health
	startOrder *[]string
	stopOrder  *[]string
	starts     int
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	m.starts++
	if m.startOrder != nil {
		*m.startOrder = append(*m.startOrder, m.name)
	}
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	if m.stopOrder != nil {
		*m.stopOrder = append(*m.stopOrder, m.name)
	}
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) Health {
	return m.health
}

type describedComponent struct{ mockComponent }

func (d *describedComponent) Describe() Description {
	return Description{Type: "policy", Details: "routing_policies.yaml"}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&mockComponent{name: "policy"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&mockComponent{name: "policy"}); err == nil {
		t.Error("expected error for duplicate registration")
	}
}

func TestGet(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&mockComponent{name: "store"})

	if got := r.Get("store"); got == nil || got.Name() != "store" {
		t.Fatalf("expected to get registered component, got %v", got)
	}
	if got := r.Get("missing"); got != nil {
		t.Error("expected nil for unregistered component")
	}
	if len(r.All()) != 1 {
		t.Errorf("expected 1 component, got %d", len(r.All()))
	}
}

func TestStartAllOrderAndIdempotence(t *testing.T) {
	r := NewRegistry()
	order := []string{}
	policy := &describedComponent{mockComponent{name: "policy", startOrder: &order}}
	store := &mockComponent{name: "store", startOrder: &order}
	_ = r.Register(policy)
	_ = r.Register(store)

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("second StartAll failed: %v", err)
	}
	if len(order) != 2 || order[0] != "policy" || order[1] != "store" {
		t.Errorf("expected start order [policy, store], got %v", order)
	}
	if store.starts != 1 {
		t.Errorf("started components must not be restarted, got %d starts", store.starts)
	}
}

func TestStartAllError(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&mockComponent{name: "policy", startErr: fmt.Errorf("invalid table")})

	if err := r.StartAll(context.Background()); err == nil {
		t.Error("expected error from StartAll")
	}
}

func TestStopAllReverseOrder(t *testing.T) {
	r := NewRegistry()
	order := []string{}
	for _, name := range []string{"policy", "store", "server"} {
		_ = r.Register(&mockComponent{name: name, stopOrder: &order})
	}
	_ = r.StartAll(context.Background())

	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if len(order) != 3 || order[0] != "server" || order[1] != "store" || order[2] != "policy" {
		t.Errorf("expected reverse stop order, got %v", order)
	}
}

func TestStopAllSkipsUnstarted(t *testing.T) {
	r := NewRegistry()
	order := []string{}
	_ = r.Register(&mockComponent{name: "store", stopOrder: &order})

	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if len(order) != 0 {
		t.Errorf("expected 0 stops for unstarted components, got %d", len(order))
	}
}

func TestStopAllWithErrors(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&mockComponent{name: "store", stopErr: fmt.Errorf("stop failed")})
	_ = r.StartAll(context.Background())

	if err := r.StopAll(context.Background()); err == nil {
		t.Error("expected error from StopAll")
	}
}

func TestHealthAll(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&mockComponent{
		name:   "policy",
		health: Health{Name: "policy", Status: StatusHealthy, Message: "14 policies"},
	})
	_ = r.Register(&mockComponent{
		name:   "store",
		health: Health{Name: "store", Status: StatusUnhealthy, Message: "closed"},
	})

	results := r.HealthAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Status != StatusHealthy || results[1].Status != StatusUnhealthy {
		t.Errorf("unexpected health %v", results)
	}
	if r.Healthy(context.Background()) {
		t.Error("registry with an unhealthy component must not be healthy")
	}
}
