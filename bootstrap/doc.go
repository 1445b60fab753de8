// Package bootstrap runs a reconflow process: typed configuration, a
// component registry holding the policy table and the store, lifecycle
// hooks, and graceful shutdown.
//
// One-shot CLI commands use RunTask; the HTTP server uses Run.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(policyComponent)
//	app.RegisterComponent(store.NewMemory())
//	err = app.RunTask(ctx, func(ctx context.Context) error {
//	    return process(ctx)
//	})
package bootstrap
