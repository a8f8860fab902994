package cookie

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidSameSite is returned when a samesite attribute is not Strict, Lax or None
	ErrInvalidSameSite = errors.New("invalid samesite value")
	// ErrMalformed is returned when a cookie has no name
	ErrMalformed = errors.New("malformed cookie")
)

// Attribute keys used by ToMap and FromMap
const (
	KeyName     = "name"
	KeyValue    = "value"
	KeyDomain   = "domain"
	KeyPath     = "path"
	KeyMaxAge   = "max-age"
	KeySecure   = "secure"
	KeyHTTPOnly = "httponly"
	KeySameSite = "samesite"
	KeyExpires  = "expires"
)

type SameSite string

const (
	SameSiteStrict SameSite = "Strict"
	SameSiteLax    SameSite = "Lax"
	SameSiteNone   SameSite = "None"
)

// ParseSameSite resolves a samesite attribute case-insensitively.
func ParseSameSite(s string) (SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return SameSiteStrict, nil
	case "lax":
		return SameSiteLax, nil
	case "none":
		return SameSiteNone, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSameSite, s)
}

// Cookie is a value object; a nil or negative MaxAge marks a session cookie.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	MaxAge   *int64
	Secure   bool
	HttpOnly bool
	SameSite SameSite
}

// Int64 returns a pointer to v, for use with Cookie.MaxAge.
func Int64(v int64) *int64 {
	return &v
}

// IsSession reports whether the cookie lives only for the browser session.
func (c Cookie) IsSession() bool {
	return c.MaxAge == nil || *c.MaxAge < 0
}

// Equal compares all attributes, dereferencing MaxAge.
func (c Cookie) Equal(o Cookie) bool {
	if (c.MaxAge == nil) != (o.MaxAge == nil) {
		return false
	}
	if c.MaxAge != nil && *c.MaxAge != *o.MaxAge {
		return false
	}
	return c.Name == o.Name && c.Value == o.Value && c.Domain == o.Domain &&
		c.Path == o.Path && c.Secure == o.Secure && c.HttpOnly == o.HttpOnly &&
		c.SameSite == o.SameSite
}

// Delete returns a cookie that expires name immediately.
func Delete(name string) Cookie {
	return Cookie{Name: name, MaxAge: Int64(0)}
}

// ToMap converts a cookie into its attribute map. samesite is only present when set.
func ToMap(c Cookie) map[string]any {
	m := map[string]any{
		KeyName:     c.Name,
		KeyValue:    c.Value,
		KeyDomain:   c.Domain,
		KeyPath:     c.Path,
		KeyMaxAge:   nil,
		KeySecure:   c.Secure,
		KeyHTTPOnly: c.HttpOnly,
	}
	if c.MaxAge != nil {
		m[KeyMaxAge] = *c.MaxAge
	}
	if c.SameSite != "" {
		m[KeySameSite] = string(c.SameSite)
	}
	return m
}

// FromMap is the inverse of ToMap. Unknown keys are ignored. An expires
// date that is not after now forces Max-Age 0 and an empty value; an
// unparseable one is ignored.
func FromMap(m map[string]any) (Cookie, error) {
	return fromMapAt(m, time.Now())
}

func fromMapAt(m map[string]any, now time.Time) (Cookie, error) {
	var c Cookie
	c.Name = stringOf(m[KeyName])
	if c.Name == "" {
		return Cookie{}, fmt.Errorf("%w: missing name", ErrMalformed)
	}
	c.Value = stringOf(m[KeyValue])
	c.Domain = stringOf(m[KeyDomain])
	c.Path = stringOf(m[KeyPath])

	if raw, ok := m[KeyMaxAge]; ok && raw != nil {
		n, err := int64Of(raw)
		if err != nil {
			return Cookie{}, fmt.Errorf("cookie %s: max-age: %w", c.Name, err)
		}
		c.MaxAge = &n
	}

	c.Secure = boolOf(m[KeySecure])
	c.HttpOnly = boolOf(m[KeyHTTPOnly])

	if raw, ok := m[KeySameSite]; ok && raw != nil {
		s := stringOf(raw)
		if s != "" {
			ss, err := ParseSameSite(s)
			if err != nil {
				return Cookie{}, fmt.Errorf("cookie %s: %w", c.Name, err)
			}
			c.SameSite = ss
		}
	}

	if s := stringOf(m[KeyExpires]); s != "" {
		if t, err := parseExpires(s); err == nil && !t.After(now) {
			c.MaxAge = Int64(0)
			c.Value = ""
		}
	}
	return c, nil
}

// Normalize accepts either a map of name to value-or-attribute-map, or a list
// of attribute maps, and returns a canonical name-keyed map of attribute maps.
func Normalize(v any) (map[string]map[string]any, error) {
	out := make(map[string]map[string]any)
	switch t := v.(type) {
	case nil:
		return out, nil
	case map[string]string:
		for k, val := range t {
			out[k] = map[string]any{KeyName: k, KeyValue: val}
		}
	case map[string]any:
		for k, val := range t {
			attrs, err := normalizeEntry(k, val)
			if err != nil {
				return nil, err
			}
			out[k] = attrs
		}
	case []map[string]any:
		for _, item := range t {
			if err := addListItem(out, item); err != nil {
				return nil, err
			}
		}
	case []any:
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: list item must be a map, got %T", ErrMalformed, item)
			}
			if err := addListItem(out, m); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: unsupported cookies value %T", ErrMalformed, v)
	}
	return out, nil
}

func normalizeEntry(name string, v any) (map[string]any, error) {
	switch t := v.(type) {
	case map[string]any:
		attrs := make(map[string]any, len(t)+1)
		for k, val := range t {
			attrs[k] = val
		}
		if stringOf(attrs[KeyName]) == "" {
			attrs[KeyName] = name
		}
		return attrs, nil
	case map[string]string:
		attrs := make(map[string]any, len(t)+1)
		for k, val := range t {
			attrs[k] = val
		}
		if stringOf(attrs[KeyName]) == "" {
			attrs[KeyName] = name
		}
		return attrs, nil
	default:
		return map[string]any{KeyName: name, KeyValue: stringOf(v)}, nil
	}
}

func addListItem(out map[string]map[string]any, item map[string]any) error {
	name := stringOf(item[KeyName])
	if name == "" {
		return fmt.Errorf("%w: list item without name", ErrMalformed)
	}
	attrs := make(map[string]any, len(item))
	for k, val := range item {
		attrs[k] = val
	}
	out[name] = attrs
	return nil
}

// FromAny normalizes v and converts every entry, sorted by name.
func FromAny(v any) ([]Cookie, error) {
	norm, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(norm))
	for name := range norm {
		names = append(names, name)
	}
	sort.Strings(names)

	cookies := make([]Cookie, 0, len(names))
	for _, name := range names {
		c, err := FromMap(norm[name])
		if err != nil {
			return nil, err
		}
		cookies = append(cookies, c)
	}
	return cookies, nil
}

// Encode renders the cookie in Set-Cookie syntax.
func Encode(c Cookie) string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)
	if c.MaxAge != nil {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.FormatInt(*c.MaxAge, 10))
	}
	if c.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(c.Domain)
	}
	if c.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(c.Path)
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HttpOnly {
		b.WriteString("; HttpOnly")
	}
	if c.SameSite != "" {
		b.WriteString("; SameSite=")
		b.WriteString(string(c.SameSite))
	}
	return b.String()
}

// Decode parses a Set-Cookie header value. Unknown attributes and bad
// Max-Age or Expires values are ignored, but a SameSite value other than
// Strict, Lax or None fails with ErrInvalidSameSite. Expires is converted to
// a max-age relative to now when no Max-Age is present.
func Decode(header string) (Cookie, error) {
	return decodeAt(header, time.Now())
}

func decodeAt(header string, now time.Time) (Cookie, error) {
	parts := strings.Split(header, ";")
	name, value, ok := strings.Cut(parts[0], "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return Cookie{}, fmt.Errorf("%w: %q", ErrMalformed, header)
	}
	c := Cookie{Name: name, Value: unquote(strings.TrimSpace(value))}

	var expires *int64
	for _, attr := range parts[1:] {
		key, val, _ := strings.Cut(attr, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		switch key {
		case "max-age":
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				c.MaxAge = &n
			}
		case "expires":
			if t, err := parseExpires(val); err == nil {
				secs := int64(math.Ceil(t.Sub(now).Seconds()))
				if secs < 0 {
					secs = 0
				}
				expires = &secs
			}
		case "domain":
			c.Domain = val
		case "path":
			c.Path = val
		case "secure":
			c.Secure = true
		case "httponly":
			c.HttpOnly = true
		case "samesite":
			ss, err := ParseSameSite(val)
			if err != nil {
				return Cookie{}, fmt.Errorf("cookie %s: %w", name, err)
			}
			c.SameSite = ss
		}
	}
	if c.MaxAge == nil && expires != nil {
		c.MaxAge = expires
	}
	return c, nil
}

var expiresLayouts = []string{
	time.RFC1123,
	"Mon, 02-Jan-2006 15:04:05 MST",
	"Mon, 02-Jan-06 15:04:05 MST",
	time.RFC850,
	time.ANSIC,
}

func parseExpires(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range expiresLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// HeaderValue joins cookies for a request Cookie header: "a=1; b=2".
func HeaderValue(cookies []Cookie) string {
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}

// ParseHeader parses a request Cookie header. Pairs without a name are skipped.
func ParseHeader(header string) []Cookie {
	var cookies []Cookie
	for _, pair := range strings.Split(header, ";") {
		name, value, _ := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cookies = append(cookies, Cookie{Name: name, Value: unquote(strings.TrimSpace(value))})
	}
	return cookies
}

// Find returns the first cookie called name in a request Cookie header.
func Find(header, name string) (Cookie, bool) {
	for _, c := range ParseHeader(header) {
		if c.Name == name {
			return c, true
		}
	}
	return Cookie{}, false
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

func boolOf(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	}
	return false
}

func int64Of(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint:
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return 0, fmt.Errorf("out of range: %d", t)
		}
		return int64(t), nil
	case float64:
		return int64(t), nil
	case float32:
		return int64(t), nil
	case json.Number:
		return t.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(t), 10, 64)
	}
	return 0, fmt.Errorf("unsupported type %T", v)
}
