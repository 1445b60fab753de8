// Package planner compiles a classified work item and its policy into a
// dag.Plan.
//
// Stage groups become barriers: every node depends on all nodes placed in
// the previous non-empty stage, so an optional task that was left out never
// blocks the stage after it. Optional tasks are gated by inclusion
// predicates on the profile's routing flags.
package planner
