// Package confkit resolves configuration properties across ranked sources.
//
// A Config is assembled by a Builder from sources and source providers. A key
// resolves to the value held by the source with the highest ordinal. The
// process-wide configuration is available through GetConfig:
//
//	cfg := confkit.GetConfig()
//	v, err := cfg.Value("tck.config.test.sampleyaml.key1")
package confkit
