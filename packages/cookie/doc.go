// Package cookie models HTTP cookies as value objects.
//
// It converts cookies to and from attribute maps (the shape scripts use),
// normalizes the shorthand forms accepted by request builders and encodes or
// decodes the Set-Cookie and Cookie header syntax:
//   - ToMap / FromMap for script-facing attribute maps
//   - Normalize for name-keyed or list-shaped cookie collections
//   - Encode / Decode for Set-Cookie headers
//   - HeaderValue / ParseHeader for request Cookie headers
package cookie
