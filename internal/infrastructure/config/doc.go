// Package config handles loading and validating the dashboard core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (NMOSDASH_*)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Registry credentials and the InfluxDB token should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Bridge.URL)
package config
