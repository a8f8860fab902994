package cookie

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		cookie Cookie
	}{
		{"minimal", Cookie{Name: "sid", Value: "abc"}},
		{"full", Cookie{
			Name: "sid", Value: "abc", Domain: "example.com", Path: "/",
			MaxAge: Int64(600), Secure: true, HttpOnly: true, SameSite: SameSiteLax,
		}},
		{"negative max-age", Cookie{Name: "tmp", Value: "1", MaxAge: Int64(-1)}},
		{"zero max-age", Delete("gone")},
		{"samesite none", Cookie{Name: "x", Value: "y", SameSite: SameSiteNone}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ToMap(tt.cookie)
			got, err := FromMap(m)
			require.NoError(t, err)
			assert.True(t, tt.cookie.Equal(got), "round trip mismatch: %+v != %+v", tt.cookie, got)
		})
	}
}

func TestToMap_SameSiteOnlyWhenSet(t *testing.T) {
	m := ToMap(Cookie{Name: "a", Value: "b"})
	_, ok := m[KeySameSite]
	assert.False(t, ok)

	m = ToMap(Cookie{Name: "a", Value: "b", SameSite: SameSiteStrict})
	assert.Equal(t, "Strict", m[KeySameSite])
}

func TestFromMap(t *testing.T) {
	t.Run("max-age forms", func(t *testing.T) {
		for _, v := range []any{60, int64(60), float64(60), json.Number("60"), "60"} {
			c, err := FromMap(map[string]any{"name": "a", "max-age": v})
			require.NoError(t, err)
			require.NotNil(t, c.MaxAge)
			assert.Equal(t, int64(60), *c.MaxAge)
		}
	})

	t.Run("samesite case insensitive", func(t *testing.T) {
		c, err := FromMap(map[string]any{"name": "a", "samesite": "lax"})
		require.NoError(t, err)
		assert.Equal(t, SameSiteLax, c.SameSite)
	})

	t.Run("invalid samesite rejected", func(t *testing.T) {
		_, err := FromMap(map[string]any{"name": "a", "samesite": "sometimes"})
		assert.ErrorIs(t, err, ErrInvalidSameSite)
	})

	t.Run("bad max-age", func(t *testing.T) {
		_, err := FromMap(map[string]any{"name": "a", "max-age": "soon"})
		assert.Error(t, err)
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := FromMap(map[string]any{"value": "x"})
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("expires", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		tests := []struct {
			name       string
			expires    string
			wantValue  string
			wantMaxAge *int64
		}{
			{"past date expires", "Sun, 31 Dec 2023 00:00:00 GMT", "", Int64(0)},
			{"now expires", "Mon, 01 Jan 2024 00:00:00 GMT", "", Int64(0)},
			{"short year", "Sun, 31-Dec-23 00:00:00 GMT", "", Int64(0)},
			{"future date kept", "Tue, 02 Jan 2024 00:00:00 GMT", "x", nil},
			{"unparseable ignored", "yesterday", "x", nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				c, err := fromMapAt(map[string]any{"name": "a", "value": "x", "expires": tt.expires}, now)
				require.NoError(t, err)
				assert.Equal(t, tt.wantValue, c.Value)
				assert.Equal(t, tt.wantMaxAge, c.MaxAge)
			})
		}

		c, err := FromMap(map[string]any{"name": "a", "value": "x", "expires": "Wed, 21 Oct 2015 07:28:00 GMT"})
		require.NoError(t, err)
		assert.Empty(t, c.Value)
		require.NotNil(t, c.MaxAge)
		assert.Equal(t, int64(0), *c.MaxAge)
	})

	t.Run("string flags", func(t *testing.T) {
		c, err := FromMap(map[string]any{"name": "a", "secure": "true", "httponly": true})
		require.NoError(t, err)
		assert.True(t, c.Secure)
		assert.True(t, c.HttpOnly)
	})
}

func TestNormalize(t *testing.T) {
	t.Run("shorthand map", func(t *testing.T) {
		got, err := Normalize(map[string]any{
			"a": "1",
			"b": map[string]any{"value": "2", "path": "/x"},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"name": "a", "value": "1"}, got["a"])
		assert.Equal(t, "b", got["b"]["name"])
		assert.Equal(t, "/x", got["b"]["path"])
	})

	t.Run("list of maps", func(t *testing.T) {
		got, err := Normalize([]any{
			map[string]any{"name": "a", "value": "1"},
			map[string]any{"name": "b", "value": "2"},
		})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, "2", got["b"]["value"])
	})

	t.Run("list item without name", func(t *testing.T) {
		_, err := Normalize([]any{map[string]any{"value": "1"}})
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := Normalize(42)
		assert.Error(t, err)
	})

	t.Run("string map", func(t *testing.T) {
		got, err := Normalize(map[string]string{"k": "v"})
		require.NoError(t, err)
		assert.Equal(t, "v", got["k"]["value"])
	})
}

func TestFromAny(t *testing.T) {
	cookies, err := FromAny(map[string]any{"b": "2", "a": "1"})
	require.NoError(t, err)
	require.Len(t, cookies, 2)
	assert.Equal(t, "a", cookies[0].Name)
	assert.Equal(t, "b", cookies[1].Name)
}

func TestEncode(t *testing.T) {
	c := Cookie{
		Name: "sid", Value: "abc", Domain: "example.com", Path: "/",
		MaxAge: Int64(600), Secure: true, HttpOnly: true, SameSite: SameSiteStrict,
	}
	assert.Equal(t, "sid=abc; Max-Age=600; Domain=example.com; Path=/; Secure; HttpOnly; SameSite=Strict", Encode(c))
	assert.Equal(t, "a=b", Encode(Cookie{Name: "a", Value: "b"}))
	assert.Equal(t, "gone=; Max-Age=0", Encode(Delete("gone")))
}

func TestDecode(t *testing.T) {
	t.Run("encode decode round trip", func(t *testing.T) {
		c := Cookie{
			Name: "sid", Value: "abc", Domain: "example.com", Path: "/",
			MaxAge: Int64(600), Secure: true, HttpOnly: true, SameSite: SameSiteNone,
		}
		got, err := Decode(Encode(c))
		require.NoError(t, err)
		assert.True(t, c.Equal(got))
	})

	t.Run("lenient attributes", func(t *testing.T) {
		got, err := Decode(`id="q1"; Priority=High; max-age=abc; secure`)
		require.NoError(t, err)
		assert.Equal(t, "q1", got.Value)
		assert.Empty(t, got.SameSite)
		assert.Nil(t, got.MaxAge)
		assert.True(t, got.Secure)
	})

	t.Run("invalid samesite rejected", func(t *testing.T) {
		_, err := Decode("id=q1; SameSite=weird")
		assert.ErrorIs(t, err, ErrInvalidSameSite)

		got, err := Decode("id=q1; samesite=strict")
		require.NoError(t, err)
		assert.Equal(t, SameSiteStrict, got.SameSite)
	})

	t.Run("expires converted", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		got, err := decodeAt("a=1; Expires=Mon, 01 Jan 2024 00:10:00 GMT", now)
		require.NoError(t, err)
		require.NotNil(t, got.MaxAge)
		assert.Equal(t, int64(600), *got.MaxAge)

		got, err = decodeAt("a=1; Expires=Sun, 31 Dec 2023 00:00:00 GMT", now)
		require.NoError(t, err)
		assert.Equal(t, int64(0), *got.MaxAge)
	})

	t.Run("max-age wins over expires", func(t *testing.T) {
		got, err := Decode("a=1; Expires=Mon, 01 Jan 2024 00:10:00 GMT; Max-Age=5")
		require.NoError(t, err)
		assert.Equal(t, int64(5), *got.MaxAge)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := Decode("=nope")
		assert.ErrorIs(t, err, ErrMalformed)
		_, err = Decode("novalue")
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestRequestHeader(t *testing.T) {
	cookies := []Cookie{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}}
	assert.Equal(t, "a=1; b=2", HeaderValue(cookies))

	parsed := ParseHeader("a=1; b=2;; =x")
	require.Len(t, parsed, 2)
	assert.Equal(t, "b", parsed[1].Name)

	c, ok := Find("a=1; sid=xyz", "sid")
	assert.True(t, ok)
	assert.Equal(t, "xyz", c.Value)
	_, ok = Find("a=1", "sid")
	assert.False(t, ok)
}

func TestIsSession(t *testing.T) {
	assert.True(t, Cookie{}.IsSession())
	assert.True(t, Cookie{MaxAge: Int64(-1)}.IsSession())
	assert.False(t, Cookie{MaxAge: Int64(0)}.IsSession())
}
