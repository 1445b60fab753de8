// Package recon provides the reference reconciliation tasks the engine
// schedules: ingestion, enrichment, matching, tolerance rules, root-cause
// heuristics, decisioning and the workflow hand-off.
//
// Tasks communicate only through dag.Results. Each task documents the keys it
// writes next to its type; downstream tasks and checkpoint conditions read
// them with the typed ports declared in ports.go.
//
// Register wires the tasks into a dag.Registry and RegisterConditions adds
// the named checkpoint predicates used by the shipped policy file.
package recon
