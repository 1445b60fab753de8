// Package component defines lifecycle-managed process state.
//
// The policy table and the ticket store are components: they are registered
// with a Registry, started in registration order when the process boots and
// stopped in reverse order on shutdown. Health feeds the /healthz endpoint.
package component
