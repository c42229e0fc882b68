// Package config handles configuration loading for the console client.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from the LENS_CONFIG environment variable
//  2. ./lens.yaml (current directory)
//  3. ~/.config/lens/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	backend:
//	  token: "${LENS_BACKEND_TOKEN}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	backend:
//	  request_timeout: "30s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Backend connection:
//
//	backend:
//	  url: "http://localhost:8000"
//	  token: "${LENS_BACKEND_TOKEN}"   # optional bearer token
//	  request_timeout: "30s"           # REST calls only, streams are unbounded
//
// Local conversation archive:
//
//	history:
//	  path: "~/.local/share/lens/history.db"
//	  disabled: false
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - backend.url presence, scheme (http/https), and host
//   - Duration format validity and positivity
package config
