// Command reconflow routes reconciliation breaks through policy-driven
// execution plans.
//
//	reconflow run -f break.json        process one work item
//	reconflow batch -f breaks.json     process a JSON array of work items
//	reconflow plan -f break.json       show the compiled plan without running it
//	reconflow policies                 describe the loaded policy table
//	reconflow validate [file]          check a policy file
//	reconflow serve                    serve the HTTP API
//	reconflow token --subject ops      issue an API bearer token
//	reconflow version
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
