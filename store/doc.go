// Package store records the workflow side effects of processing a work item:
// tickets, the audit trail and reviewer feedback.
//
// Repository is the seam; Memory is the in-process implementation used by the
// CLI and the API server. It is registered as a component so the bootstrap
// lifecycle opens and closes it with the rest of the process state.
package store
