// Package config loads service configuration with viper.
//
// LoadConfig finds config.yml under ./cmd/<service>/ (and a few fallbacks),
// loads an optional .env file with godotenv, then overlays environment
// variables that carry the configured prefix:
//
//	RECONFLOW_POLICY_FILE=./policies/routing_policies.yaml  ->  policy.file
//
// Every decoded struct embeds ServiceConfig and follows the
// ApplyDefaults / Validate convention.
package config
