// Package config handles loading and validating weddingcue configuration.
//
// This package manages:
//   - Loading .env files into the environment (godotenv)
//   - Loading configuration from YAML files
//   - Overriding with WEDDINGCUE_* environment variables
//   - Validation of required fields and secrets
//
// Security Considerations:
//   - The JWT secret and cron secret should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	if _, err := config.LoadDotEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
