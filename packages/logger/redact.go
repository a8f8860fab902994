package logger

import (
	"sort"
	"strings"
	"unicode/utf8"
)

var sensitiveHeaders = map[string]bool{
	"authorization":        true,
	"proxy-authorization":  true,
	"cookie":               true,
	"set-cookie":           true,
	"x-api-key":            true,
	"x-amz-security-token": true,
}

func maskedValue(v string) string {
	if v == "" {
		return ""
	}
	l := utf8.RuneCountInString(v)
	if l <= 2 {
		return "<redacted>"
	}
	first, _ := utf8.DecodeRuneInString(v)
	last, _ := utf8.DecodeLastRuneInString(v)
	return string(first) + "*****" + string(last)
}

// RedactHeaderValue masks the value of credential-bearing headers.
func RedactHeaderValue(name, v string) string {
	if v == "" {
		return ""
	}
	if sensitiveHeaders[strings.ToLower(name)] {
		return maskedValue(v)
	}
	return v
}

// SafeHeaders renders the first value of each header, sorted by name, with
// sensitive values masked.
func SafeHeaders(h map[string][]string) string {
	names := make([]string, 0, len(h))
	for k, v := range h {
		if len(v) > 0 {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, k+"="+RedactHeaderValue(k, h[k][0]))
	}
	return strings.Join(parts, "; ")
}
