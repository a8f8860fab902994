package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/hitwire/packages/resource"
)

// FileValue marks a multipart value that should be read from disk.
type FileValue struct {
	Path string
}

// FormField is one url-encoded field in insertion order.
type FormField struct {
	Name  string
	Value string
}

type part struct {
	name             string
	value            any
	contentType      string
	filename         string
	charset          string
	transferEncoding string
}

// PartOption sets an explicit attribute on a part.
type PartOption func(*part)

func PartContentType(ct string) PartOption {
	return func(p *part) { p.contentType = ct }
}

func PartFilename(name string) PartOption {
	return func(p *part) { p.filename = name }
}

func PartCharset(cs string) PartOption {
	return func(p *part) { p.charset = cs }
}

func PartTransferEncoding(te string) PartOption {
	return func(p *part) { p.transferEncoding = te }
}

// MultiPartBuilder accumulates form or multipart fields and encodes them once.
// After the first Build the encoded bytes, boundary and display rendering are
// fixed; later calls return the same bytes.
type MultiPartBuilder struct {
	multipart   bool
	charset     string
	contentType string
	baseDir     string
	parts       []*part

	built    bool
	body     []byte
	err      error
	boundary string
	display  string
}

// NewMultiPartBuilder creates a builder. charset is the default for text parts
// and may be empty.
func NewMultiPartBuilder(multipart bool, charset string) *MultiPartBuilder {
	return &MultiPartBuilder{multipart: multipart, charset: charset}
}

// WithContentType keeps a caller supplied Content-Type; the boundary is
// appended to it instead of replacing it.
func (b *MultiPartBuilder) WithContentType(ct string) *MultiPartBuilder {
	b.contentType = ct
	return b
}

// WithBaseDir resolves relative file paths against dir and rejects paths
// that escape it.
func (b *MultiPartBuilder) WithBaseDir(dir string) *MultiPartBuilder {
	b.baseDir = dir
	return b
}

func (b *MultiPartBuilder) IsMultipart() bool {
	return b.multipart
}

func (b *MultiPartBuilder) IsBuilt() bool {
	return b.built
}

// Part adds one field. Values of type *os.File or FileValue become file parts
// in multipart mode.
func (b *MultiPartBuilder) Part(name string, value any, opts ...PartOption) *MultiPartBuilder {
	p := &part{name: name, value: value}
	for _, opt := range opts {
		opt(p)
	}
	b.parts = append(b.parts, p)
	return b
}

// PartMap adds a field described by an attribute map with the keys name,
// value, contentType, filename, charset and transferEncoding.
func (b *MultiPartBuilder) PartMap(m map[string]any) error {
	name, _ := m["name"].(string)
	if name == "" {
		return fmt.Errorf("%w: multipart field without name", ErrEncoding)
	}
	var opts []PartOption
	if v, ok := m["contentType"].(string); ok && v != "" {
		opts = append(opts, PartContentType(v))
	}
	if v, ok := m["filename"].(string); ok && v != "" {
		opts = append(opts, PartFilename(v))
	}
	if v, ok := m["charset"].(string); ok && v != "" {
		opts = append(opts, PartCharset(v))
	}
	if v, ok := m["transferEncoding"].(string); ok && v != "" {
		opts = append(opts, PartTransferEncoding(v))
	}
	value := m["value"]
	if value == nil {
		if path, ok := m["path"].(string); ok && path != "" {
			value = FileValue{Path: path}
		}
	}
	b.Part(name, value, opts...)
	return nil
}

// Len returns the number of staged fields.
func (b *MultiPartBuilder) Len() int {
	return len(b.parts)
}

// FormFields returns the staged fields as strings, in insertion order.
func (b *MultiPartBuilder) FormFields() ([]FormField, error) {
	fields := make([]FormField, 0, len(b.parts))
	for _, p := range b.parts {
		s, err := stringify(p.value)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", ErrEncoding, p.name, err)
		}
		fields = append(fields, FormField{Name: p.name, Value: s})
	}
	return fields, nil
}

// Build encodes the body on the first call and returns the cached bytes after.
func (b *MultiPartBuilder) Build() ([]byte, error) {
	if b.built {
		return b.body, b.err
	}
	b.built = true
	if b.multipart {
		b.body, b.err = b.buildMultipart()
	} else {
		b.body, b.err = b.buildURLEncoded()
	}
	if b.err != nil {
		b.body = nil
		b.display = ""
	}
	return b.body, b.err
}

// Boundary is empty until a multipart body has been built.
func (b *MultiPartBuilder) Boundary() string {
	return b.boundary
}

// ContentTypeHeader returns the Content-Type to send with the built body.
func (b *MultiPartBuilder) ContentTypeHeader() string {
	if !b.multipart {
		ct := b.contentType
		if ct == "" {
			ct = resource.URLEncoded.ContentType()
		}
		if b.charset != "" && !hasCharset(ct) {
			ct += "; charset=" + b.charset
		}
		return ct
	}
	ct := b.contentType
	if ct == "" {
		ct = resource.Multipart.ContentType()
	}
	if b.boundary == "" {
		return ct
	}
	return ct + "; boundary=" + b.boundary
}

// BodyForDisplay is a log-safe rendering; file contents are never included.
func (b *MultiPartBuilder) BodyForDisplay() string {
	return b.display
}

func (b *MultiPartBuilder) buildURLEncoded() ([]byte, error) {
	fields, err := b.FormFields()
	if err != nil {
		return nil, err
	}
	body := []byte(encodeFormFields(fields))
	b.display = string(body)
	return body, nil
}

func encodeFormFields(fields []FormField) string {
	var buf strings.Builder
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString(url.QueryEscape(f.Name))
		buf.WriteByte('=')
		buf.WriteString(url.QueryEscape(f.Value))
	}
	return buf.String()
}

func (b *MultiPartBuilder) buildMultipart() ([]byte, error) {
	var buf bytes.Buffer
	var display strings.Builder
	w := multipart.NewWriter(&buf)

	for _, p := range b.parts {
		data, filename, isFile, err := p.read(b.baseDir)
		if err != nil {
			return nil, fmt.Errorf("%w: part %s: %v", ErrEncoding, p.name, err)
		}

		ct, kind := p.resolveContentType(filename)
		if !kind.IsBinary() && !hasCharset(ct) {
			cs := p.charset
			if cs == "" {
				cs = b.charset
			}
			if cs != "" {
				ct += "; charset=" + cs
			}
		}

		h := make(textproto.MIMEHeader)
		disposition := fmt.Sprintf(`form-data; name="%s"`, escapeQuotes(p.name))
		if filename != "" {
			disposition += fmt.Sprintf(`; filename="%s"`, escapeQuotes(filename))
		}
		h.Set("Content-Disposition", disposition)
		h.Set("Content-Type", ct)
		if p.transferEncoding != "" {
			h.Set("Content-Transfer-Encoding", p.transferEncoding)
		}

		pw, err := w.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("%w: part %s: %v", ErrEncoding, p.name, err)
		}
		if _, err := pw.Write(data); err != nil {
			return nil, fmt.Errorf("%w: part %s: %v", ErrEncoding, p.name, err)
		}

		fmt.Fprintf(&display, "--- name: %s", p.name)
		if filename != "" {
			fmt.Fprintf(&display, ", filename: %s", filename)
		}
		fmt.Fprintf(&display, ", content-type: %s, size: %d\n", ct, len(data))
		if !isFile && !kind.IsBinary() {
			display.Write(data)
			display.WriteByte('\n')
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	b.boundary = w.Boundary()
	b.display = display.String()
	return buf.Bytes(), nil
}

func (p *part) read(baseDir string) (data []byte, filename string, isFile bool, err error) {
	filename = p.filename
	switch v := p.value.(type) {
	case *os.File:
		if filename == "" {
			filename = filepath.Base(v.Name())
		}
		data, err = io.ReadAll(v)
		return data, filename, true, err
	case FileValue:
		if filename == "" {
			filename = filepath.Base(v.Path)
		}
		path := v.Path
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		if err = validatePathWithinBase(path, baseDir); err != nil {
			return nil, filename, true, err
		}
		data, err = os.ReadFile(path)
		return data, filename, true, err
	}
	data, err = encodeValue(p.value)
	return data, filename, false, err
}

// resolveContentType tries the explicit attribute, then the filename
// extension, then the value kind, and falls back to binary.
func (p *part) resolveContentType(filename string) (string, resource.Kind) {
	if p.contentType != "" {
		k, _ := resource.FromContentType(p.contentType)
		return p.contentType, k
	}
	if filename != "" {
		if k, ok := resource.FromFileExtension(filename); ok {
			return k.ContentType(), k
		}
	}
	if _, isFile := p.value.(FileValue); !isFile {
		if _, isOS := p.value.(*os.File); !isOS {
			if k, ok := resource.FromValue(p.value); ok {
				return k.ContentType(), k
			}
		}
	}
	return resource.Binary.ContentType(), resource.Binary
}

func hasCharset(ct string) bool {
	return strings.Contains(strings.ToLower(ct), "charset=")
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// encodeValue serializes a body or part value. Maps, slices and structs are
// compact JSON and XML nodes are rendered as XML.
func encodeValue(v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	case resource.XMLNode:
		return t.XMLDocument()
	case fmt.Stringer:
		return []byte(t.String()), nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return []byte(fmt.Sprint(t)), nil
	}
	return json.Marshal(v)
}

// stringify renders a form value: bytes as string, maps and slices as
// compact JSON, everything else with fmt.
func stringify(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case map[string]any, []any, map[string]string, []string, []map[string]any:
		data, err := json.Marshal(t)
		return string(data), err
	case FileValue:
		return "", fmt.Errorf("file value %s needs multipart mode", t.Path)
	case *os.File:
		return "", fmt.Errorf("file %s needs multipart mode", t.Name())
	}
	return fmt.Sprint(v), nil
}

// validatePathWithinBase checks that the resolved path stays within the base directory
// to prevent path traversal attacks
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}
