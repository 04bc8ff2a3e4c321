// Package config loads the runtime settings of the confkit service from
// multiple sources (YAML file, environment variables, CLI flags) with
// precedence: CLI flags > YAML config > Environment variables > Defaults.
//
// These are the service's own settings. The properties the service serves are
// resolved by pkg/confkit.
package config
