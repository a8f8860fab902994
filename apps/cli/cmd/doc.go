// Package cmd implements the hitwire CLI commands using Cobra.
//
// Available commands:
//   - mock: Serve a YAML routes file through the session-aware handler
//   - request: Send one request with the pooled or async client
//   - completion: Generate shell completion scripts
//   - version: Show hitwire version information
//
// Every command reads .hitwire.config.json, .hitwirerc or hitwire.yaml
// from the current directory unless --config names a file.
package cmd
