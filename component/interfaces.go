package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component represents a lifecycle-managed piece of process state, such as
// the policy table or the ticket store.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start loads or opens the component.
	Start(ctx context.Context) error

	// Stop releases resources.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) Health
}

// Description holds summary information for startup logging.
type Description struct {
	// Name is the display name. If empty, the component's Name() is used.
	Name string
	// Type categorizes the component: "policy", "store", "server".
	Type string
	// Details is a one-liner such as "policies/routing_policies.yaml v2.1 (14 policies)".
	Details string
}

// Describable is optionally implemented by components that can report what
// they loaded.
type Describable interface {
	Describe() Description
}
