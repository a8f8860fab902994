// Package logger holds the process-wide structured logger.
//
// Events are logged with snake_case names and key/value pairs:
//
//	logger.Info("session_created", "id", s.ID)
//
// Header values that carry credentials must go through SafeHeaders before
// they are logged.
package logger
