// Package logger provides structured logging backed by zerolog.
//
// Loggers carry a service name and optional component tag. Log methods take
// an optional field map so call sites stay close to plain messages:
//
//	log := logger.Get("executor")
//	log.Info("batch complete", logger.Fields(logger.FieldPlanID, plan.ID, "size", 3))
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
package logger
