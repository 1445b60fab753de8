// Package policy loads the routing policy table.
//
// A policy file maps a break category and risk tier to the shape of the
// plan that should run:
//
//	version: "2.1"
//	policies:
//	  TRADE_OMS_MISMATCH:
//	    LOW:
//	      mandatory_tasks: [BREAK_INGESTION, DATA_ENRICHMENT, RULES_TOLERANCE, DECISIONING]
//	      optional_tasks: [MATCHING_CORRELATION]
//	      stage_groups:
//	        - [BREAK_INGESTION]
//	        - [DATA_ENRICHMENT]
//	        - [MATCHING_CORRELATION, RULES_TOLERANCE]
//	        - [DECISIONING]
//	      decision_checkpoints:
//	        - after_nodes: [RULES_TOLERANCE]
//	          condition: within_tolerance
//	          action: AUTO_RESOLVE
//	          confidence_threshold: 0.95
//	      max_parallel: 2
//	      early_exit_enabled: true
//
// The file is validated eagerly: unknown keys, unknown task names, bad
// actions and unregistered conditions all fail the load, and every problem
// is reported at once. Lookups fall back from the exact entry to the
// DEFAULT category and finally to a built-in minimal policy.
package policy
