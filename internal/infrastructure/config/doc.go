// Package config handles loading and validation of HSB Core configuration.
//
// Configuration is read from a YAML file with environment variable overrides
// for deployment-specific and secret values. Loading follows a strict order:
// defaults, file, environment. Validate runs last so every source is checked
// the same way.
package config
