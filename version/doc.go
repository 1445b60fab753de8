// Package version reports build information for the reconflow binary.
//
// Values are set with -ldflags and fall back to the module build info:
//
//	go build -ldflags "-X github.com/kbukum/reconflow/version.Version=1.4.0" ./cmd/reconflow
package version
