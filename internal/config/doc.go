// Package config loads trader configuration from YAML.
//
// ${VAR} references are expanded from the environment before parsing, and a
// .env file is read first when present. RH_API_KEY, RH_PRIVATE_KEY and
// RH_BASE_URL override the file. Zero values are replaced with defaults
// (see defaults.go) before validation.
package config
