// Package config handles configuration loading and management for hitwire.
//
// It provides functionality for:
//   - Loading .hitwire.config.json, .hitwirerc or hitwire.yaml files
//   - Loading a .env file next to the config and expanding ${VAR} references
//   - Default configuration values and merging of CLI overrides
//   - Mapping the client section onto http.Config and the server section
//     onto server.Config, handler options and a session store
package config
