// Package orchestrator wires classification, policy lookup, plan compilation
// and execution into one call per work item, and renders the execution report
// with the reasoning behind every routing choice.
//
// Service.Process handles one work item, Service.Plan compiles without
// executing, and Service.ProcessBatch fans out over a bounded worker pool
// while keeping reports in input order.
package orchestrator
