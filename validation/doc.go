// Package validation checks inputs with go-playground/validator struct tags and
// with a fluent Validator that collects field errors.
//
// # Struct Tag Validation
//
//	type Side struct {
//	    Amount float64 `json:"amount" validate:"finite"`
//	}
//	err := validation.Validate(item)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Min("max_parallel", p.MaxParallel, 1)
//	v.Member("stage_groups[0][1]", name, knownTasks, "task")
//	if appErr := v.Validate(); appErr != nil { ... }
package validation
