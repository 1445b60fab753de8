// Package resilience retries failed operations with exponential backoff.
//
// The scheduler never retries on its own. Retry is layered onto a single task
// type by dag.WithRetry when that task's configuration asks for it:
//
//	tasks:
//	  DATA_ENRICHMENT:
//	    retry:
//	      max_attempts: 3
//	      initial_backoff: 50ms
package resilience
