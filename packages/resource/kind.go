// Package resource classifies content types, file extensions and runtime values
// into resource kinds.
//
// A Kind decides how a body is treated by the rest of hitwire:
//   - JSON and XML bodies are parsed and pretty-printed
//   - Binary bodies are passed through untouched
//   - Url-encoded and multipart kinds are never served as static assets
//
// Lookup tables are built once at init and are safe for concurrent reads.
package resource

import (
	"encoding/xml"
	"strings"
)

// Kind is a semantic classification of a content type or file extension.
type Kind uint8

const (
	Unknown Kind = iota
	JS
	JSON
	CSS
	ICO
	PNG
	GIF
	JPG
	SVG
	MP4
	PDF
	HTML
	XML
	Text
	Multipart
	URLEncoded
	Binary
	RDFXML
	NTriples
	Turtle
	NQuads
	TriG
	N3
	JSONLD
)

type entry struct {
	name        string
	contentType string
	contentLike []string
	extensions  []string
}

// table order matters: FromContentType returns the first match.
var table = [...]entry{
	Unknown:    {name: "unknown"},
	JS:         {"js", "text/javascript", []string{"javascript"}, []string{"js"}},
	JSON:       {"json", "application/json", []string{"json"}, []string{"json"}},
	CSS:        {"css", "text/css", []string{"css"}, []string{"css"}},
	ICO:        {"ico", "image/x-icon", []string{"x-icon"}, []string{"ico"}},
	PNG:        {"png", "image/png", []string{"png"}, []string{"png"}},
	GIF:        {"gif", "image/gif", []string{"gif"}, []string{"gif"}},
	JPG:        {"jpg", "image/jpeg", []string{"jpeg", "jpg"}, []string{"jpg", "jpeg"}},
	SVG:        {"svg", "image/svg+xml", []string{"svg"}, []string{"svg"}},
	MP4:        {"mp4", "video/mp4", []string{"mp4"}, []string{"mp4"}},
	PDF:        {"pdf", "application/pdf", []string{"pdf"}, []string{"pdf"}},
	HTML:       {"html", "text/html", []string{"html"}, []string{"html", "htm"}},
	XML:        {"xml", "application/xml", []string{"xml"}, []string{"xml"}},
	Text:       {"text", "text/plain", []string{"plain"}, []string{"txt"}},
	Multipart:  {"multipart", "multipart/form-data", []string{"multipart"}, nil},
	URLEncoded: {"urlencoded", "application/x-www-form-urlencoded", []string{"urlencoded"}, nil},
	Binary:     {"binary", "application/octet-stream", []string{"octet"}, nil},
	RDFXML:     {"rdfxml", "application/rdf+xml", []string{"xml", "rdf"}, []string{"rdf"}},
	NTriples:   {"ntriples", "application/n-triples", []string{"rdf"}, []string{"nt"}},
	Turtle:     {"turtle", "text/turtle", []string{"rdf"}, []string{"ttl"}},
	NQuads:     {"nquads", "application/n-quads", []string{"rdf"}, []string{"nq"}},
	TriG:       {"trig", "application/trig", []string{"rdf"}, []string{"trig"}},
	N3:         {"n3", "text/n3", []string{"rdf"}, []string{"n3"}},
	JSONLD:     {"jsonld", "application/ld+json", []string{"json", "rdf"}, []string{"jsonld"}},
}

var extensionIndex = func() map[string]Kind {
	m := make(map[string]Kind)
	for k := JS; k <= JSONLD; k++ {
		for _, ext := range table[k].extensions {
			m[ext] = k
		}
	}
	return m
}()

// Kinds returns every known kind in lookup order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(table)-1)
	for k := JS; k <= JSONLD; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

func (k Kind) valid() bool {
	return k > Unknown && int(k) < len(table)
}

// String returns the short name of the kind
func (k Kind) String() string {
	if int(k) >= len(table) {
		return "unknown"
	}
	return table[k].name
}

// ContentType returns the canonical content type, or "" for Unknown
func (k Kind) ContentType() string {
	if !k.valid() {
		return ""
	}
	return table[k].contentType
}

// Extension returns the preferred file extension, or "" when the kind has none
func (k Kind) Extension() string {
	if !k.valid() || len(table[k].extensions) == 0 {
		return ""
	}
	return table[k].extensions[0]
}

func (k Kind) IsBinary() bool {
	switch k {
	case Binary, ICO, PNG, GIF, JPG, PDF, MP4:
		return true
	default:
		return false
	}
}

func (k Kind) IsText() bool {
	return k == Text
}

func (k Kind) IsJSON() bool {
	switch k {
	case JSON, JSONLD:
		return true
	default:
		return false
	}
}

func (k Kind) IsXML() bool {
	switch k {
	case XML, RDFXML:
		return true
	default:
		return false
	}
}

func (k Kind) IsHTML() bool {
	return k == HTML
}

func (k Kind) IsImage() bool {
	switch k {
	case Binary, ICO, PNG, GIF, JPG:
		return true
	default:
		return false
	}
}

func (k Kind) IsVideo() bool {
	return k == MP4
}

func (k Kind) IsURLEncodedOrMultipart() bool {
	switch k {
	case URLEncoded, Multipart:
		return true
	default:
		return false
	}
}

// FromContentType resolves a Content-Type header value. The exact content type
// is tried first for each kind, then its "content-like" fragments, so vendor
// types such as application/vnd.acme+json still resolve to JSON.
func FromContentType(ct string) (Kind, bool) {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if ct == "" {
		return Unknown, false
	}
	for k := JS; k <= JSONLD; k++ {
		e := table[k]
		if ct == e.contentType {
			return k, true
		}
		for _, like := range e.contentLike {
			if strings.Contains(ct, like) {
				return k, true
			}
		}
	}
	return Unknown, false
}

// FromFileExtension resolves the extension after the last dot of path.
func FromFileExtension(path string) (Kind, bool) {
	pos := strings.LastIndexByte(path, '.')
	if pos == -1 || pos == len(path)-1 {
		return Unknown, false
	}
	ext := strings.ToLower(strings.TrimSpace(path[pos+1:]))
	k, ok := extensionIndex[ext]
	return k, ok
}

// XMLNode marks values that should be serialized as XML documents.
type XMLNode interface {
	XMLDocument() ([]byte, error)
}

// XMLValue wraps any encoding/xml marshalable value as an XMLNode.
type XMLValue struct {
	V any
}

func (x XMLValue) XMLDocument() ([]byte, error) {
	return xml.Marshal(x.V)
}

// FromValue infers a kind from a runtime value: maps and slices are JSON,
// strings are text, XML nodes are XML and byte slices are binary.
func FromValue(v any) (Kind, bool) {
	switch v.(type) {
	case nil:
		return Unknown, false
	case []byte:
		return Binary, true
	case string:
		return Text, true
	case XMLNode:
		return XML, true
	case map[string]any, map[string]string, []any, []string, []map[string]any:
		return JSON, true
	}
	return Unknown, false
}

// FromValueOr is FromValue with a fallback kind.
func FromValueOr(v any, fallback Kind) Kind {
	if k, ok := FromValue(v); ok {
		return k
	}
	return fallback
}
