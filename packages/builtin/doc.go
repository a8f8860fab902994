// Package builtin provides the functions available in mock route templates.
//
// Available functions:
//   - uuid(): random UUID v4
//   - nextId(): per-registry sequence number and the time in milliseconds
//   - now(), timestamp(), timestampMs(), date(layout)
//   - random(min, max), randomString(length), randomEmail()
//   - base64(value), base64Decode(value), md5(value), sha256(value)
//   - urlEncode(value), urlDecode(value), upper(value), lower(value)
//   - env(name, fallback): environment variable
//
// Functions are invoked with the {{$name(args)}} syntax.
package builtin
