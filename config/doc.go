// Package config loads the controller configuration.
//
// Loading is layered. Defaults come first, then each file added with
// AddLayer is deep-merged over the result (JSON, or YAML for .yaml and
// .yml files), then EMPOWER_* environment variables override single keys,
// then Validate runs when enabled.
//
//	loader := config.NewLoader()
//	loader.AddLayer("/etc/empower/empower.yaml")
//	loader.AddLayer("local.json")
//	loader.EnableValidation(true)
//	cfg, err := loader.Load()
//
// Durations are written as Go duration strings ("2s", "500ms") or as
// integer nanoseconds.
//
// Environment overrides:
//
//	EMPOWER_LVAPP_PORT, EMPOWER_VBSP_PORT, EMPOWER_LVNFP_PORT
//	EMPOWER_API_PORT, EMPOWER_FEEDS_PORT, EMPOWER_METRICS_PORT
//	EMPOWER_STORAGE_DRIVER, EMPOWER_STORAGE_PATH
//	EMPOWER_NATS_URLS (comma separated), EMPOWER_NATS_SUBJECT_PREFIX
//	EMPOWER_NATS_USERNAME, EMPOWER_NATS_PASSWORD, EMPOWER_NATS_TOKEN
//	EMPOWER_ADMIN_USERNAME, EMPOWER_ADMIN_PASSWORD
package config
