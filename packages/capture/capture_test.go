package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hhttp "github.com/abdul-hamid-achik/hitwire/packages/http"
)

func TestParse(t *testing.T) {
	tests := []struct {
		expr    string
		want    *Capture
		wantErr bool
	}{
		{expr: "token=body.auth.token", want: &Capture{Name: "token", Source: SourceBody, Path: "auth.token"}},
		{expr: "all=body", want: &Capture{Name: "all", Source: SourceBody}},
		{expr: "sid=cookie.hitwire.sid", want: &Capture{Name: "sid", Source: SourceCookie, Path: "hitwire.sid"}},
		{expr: " code = status ", want: &Capture{Name: "code", Source: SourceStatus}},
		{expr: "noequals", wantErr: true},
		{expr: "h=header", wantErr: true},
		{expr: "s=status.code", wantErr: true},
		{expr: "x=query.q", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Parse(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractAll(t *testing.T) {
	resp := hhttp.NewResponse(201)
	resp.Header.Set("Content-Type", "application/json")
	resp.Header.Set("X-Request-Id", "r-1")
	resp.Header.Add("Set-Cookie", "hitwire.sid=abc; Path=/; HttpOnly")
	resp.Body = []byte(`{"user":{"id":7,"tags":["a","b"]}}`)
	resp.Duration = 42 * time.Millisecond

	var captures []*Capture
	for _, expr := range []string{
		"id=body.user.id",
		"tag=body.user.tags.1",
		"missing=body.user.email",
		"rid=header.X-Request-Id",
		"sid=cookie.hitwire.sid",
		"code=status",
		"took=duration",
	} {
		c, err := Parse(expr)
		require.NoError(t, err)
		captures = append(captures, c)
	}

	got := ExtractAll(resp, captures)
	assert.Equal(t, map[string]any{
		"id":   float64(7),
		"tag":  "b",
		"rid":  "r-1",
		"sid":  "abc",
		"code": 201,
		"took": int64(42),
	}, got)
}

func TestExtract_TextBody(t *testing.T) {
	resp := hhttp.NewResponse(200)
	resp.Header.Set("Content-Type", "text/plain")
	resp.Body = []byte("pong")
	e := NewExtractor(resp)

	v, ok := e.Extract(&Capture{Source: SourceBody})
	assert.True(t, ok)
	assert.Equal(t, "pong", v)

	_, ok = e.Extract(&Capture{Source: SourceBody, Path: "a"})
	assert.False(t, ok)
}
