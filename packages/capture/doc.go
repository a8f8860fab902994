// Package capture extracts values from HTTP responses.
//
// It supports capturing values from:
//   - Response body (gjson paths)
//   - Response headers and Set-Cookie values
//   - Response status code and duration
//
// The request command prints captured values with --capture name=source.path,
// e.g. --capture sid=cookie.hitwire.sid.
package capture
