// Package output renders responses for the command line.
//
// Supported output formats:
//   - Console: colored status line, headers and a pretty-printed body
//   - JSON: one machine-readable document per response
package output
