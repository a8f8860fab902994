package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContentType(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Kind
		wantOK bool
	}{
		{"exact json", "application/json", JSON, true},
		{"json with charset", "application/json; charset=utf-8", JSON, true},
		{"vendor json", "application/vnd.acme.v1+json", JSON, true},
		{"upper case", "TEXT/HTML", HTML, true},
		{"javascript", "application/javascript", JS, true},
		{"jpeg", "image/jpeg", JPG, true},
		{"plain", "text/plain", Text, true},
		{"form", "application/x-www-form-urlencoded", URLEncoded, true},
		{"multipart", "multipart/form-data; boundary=abc", Multipart, true},
		{"octet", "application/octet-stream", Binary, true},
		{"turtle exact", "text/turtle", Turtle, true},
		{"json-ld matches json first", "application/ld+json", JSON, true},
		{"xml", "text/xml", XML, true},
		{"empty", "", Unknown, false},
		{"unknown", "application/x-foo", Unknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromContentType(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromFileExtension(t *testing.T) {
	tests := []struct {
		path   string
		want   Kind
		wantOK bool
	}{
		{"app.js", JS, true},
		{"styles/site.CSS", CSS, true},
		{"img/logo.png", PNG, true},
		{"photo.jpeg", JPG, true},
		{"index.htm", HTML, true},
		{"data.jsonld", JSONLD, true},
		{"graph.ttl", Turtle, true},
		{"readme", Unknown, false},
		{"trailing.", Unknown, false},
		{"archive.tar.gz", Unknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := FromFileExtension(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

type node struct {
	XMLNameField string `xml:"name"`
}

func TestFromValue(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   Kind
		wantOK bool
	}{
		{"map", map[string]any{"a": 1}, JSON, true},
		{"list", []any{1, 2}, JSON, true},
		{"string", "hello", Text, true},
		{"bytes", []byte{1, 2}, Binary, true},
		{"xml", XMLValue{V: node{"x"}}, XML, true},
		{"nil", nil, Unknown, false},
		{"int", 42, Unknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromValue(tt.value)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, Binary, FromValueOr(42, Binary))
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, PNG.IsBinary())
	assert.True(t, PDF.IsBinary())
	assert.False(t, SVG.IsBinary())
	assert.True(t, JSONLD.IsJSON())
	assert.True(t, RDFXML.IsXML())
	assert.False(t, HTML.IsXML())
	assert.True(t, Text.IsText())
	assert.True(t, HTML.IsHTML())
	assert.True(t, GIF.IsImage())
	assert.False(t, MP4.IsImage())
	assert.True(t, MP4.IsVideo())
	assert.True(t, URLEncoded.IsURLEncodedOrMultipart())
	assert.True(t, Multipart.IsURLEncodedOrMultipart())
	assert.False(t, JSON.IsURLEncodedOrMultipart())
}

func TestKindAccessors(t *testing.T) {
	assert.Equal(t, "application/json", JSON.ContentType())
	assert.Equal(t, "jpg", JPG.Extension())
	assert.Equal(t, "", Binary.Extension())
	assert.Equal(t, "", Unknown.ContentType())
	assert.Equal(t, "json", JSON.String())
	assert.Equal(t, "unknown", Kind(200).String())
	assert.Len(t, Kinds(), 23)
}
