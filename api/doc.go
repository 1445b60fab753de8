// Package api exposes the orchestrator over HTTP.
//
// The server is a Gin engine with request-ID, recovery, request logging and
// Prometheus middleware. Bearer-token authentication with HMAC-signed JWTs is
// enabled through Config.Auth. Routes:
//
//	POST /v1/work-items             process one work item
//	POST /v1/work-items/batch       process a batch
//	POST /v1/plans                  compile a plan without executing it
//	GET  /v1/policies               describe the loaded policy table
//	GET  /v1/tickets                list tickets
//	GET  /v1/tickets/:id/audit      audit trail of a ticket's work item
//	POST /v1/tickets/:id/resolve    resolve a ticket
//	POST /v1/feedback               record a reviewer's verdict
//	GET  /healthz                   component health
//	GET  /metrics                   Prometheus exposition
package api
