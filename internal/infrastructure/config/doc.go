// Package config handles loading and validating catalog and peer configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (CATALOG_*)
//   - Validation of required fields
//   - Default value handling
//
// The same Config type is used by the catalog server and by every peer
// binary; each process reads only the sections relevant to it.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Port)
package config
