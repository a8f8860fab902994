package http

import (
	"net/http"
	"sort"
	"strings"
)

// HeaderField is one header name with all of its values.
type HeaderField struct {
	Name   string
	Values []string
}

// Header is an ordered multi-map of header fields. Lookups are
// case-insensitive and a field keeps the case of its first insertion.
// The zero value is ready to use.
type Header struct {
	fields []HeaderField
}

func NewHeader() *Header {
	return &Header{}
}

// HeaderFromHTTP copies a net/http header, ordering fields by name.
func HeaderFromHTTP(h http.Header) *Header {
	out := &Header{}
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out.Add(name, h[name]...)
	}
	return out
}

func (h *Header) index(name string) int {
	for i := range h.fields {
		if strings.EqualFold(h.fields[i].Name, name) {
			return i
		}
	}
	return -1
}

// Get returns the first value for name, or "".
func (h *Header) Get(name string) string {
	if h == nil {
		return ""
	}
	if i := h.index(name); i >= 0 && len(h.fields[i].Values) > 0 {
		return h.fields[i].Values[0]
	}
	return ""
}

// Values returns every value for name.
func (h *Header) Values(name string) []string {
	if h == nil {
		return nil
	}
	if i := h.index(name); i >= 0 {
		return h.fields[i].Values
	}
	return nil
}

func (h *Header) Has(name string) bool {
	return h != nil && h.index(name) >= 0
}

// Set replaces the values of name, keeping its original position and case.
func (h *Header) Set(name string, values ...string) {
	vals := append([]string(nil), values...)
	if i := h.index(name); i >= 0 {
		h.fields[i].Values = vals
		return
	}
	h.fields = append(h.fields, HeaderField{Name: name, Values: vals})
}

// Add appends values to name.
func (h *Header) Add(name string, values ...string) {
	if i := h.index(name); i >= 0 {
		h.fields[i].Values = append(h.fields[i].Values, values...)
		return
	}
	h.fields = append(h.fields, HeaderField{Name: name, Values: append([]string(nil), values...)})
}

func (h *Header) Del(name string) {
	if i := h.index(name); i >= 0 {
		h.fields = append(h.fields[:i], h.fields[i+1:]...)
	}
}

func (h *Header) Len() int {
	if h == nil {
		return 0
	}
	return len(h.fields)
}

// Fields returns the fields in insertion order. The slice must not be modified.
func (h *Header) Fields() []HeaderField {
	if h == nil {
		return nil
	}
	return h.fields
}

func (h *Header) Clone() *Header {
	out := &Header{}
	if h == nil {
		return out
	}
	out.fields = make([]HeaderField, len(h.fields))
	for i, f := range h.fields {
		out.fields[i] = HeaderField{Name: f.Name, Values: append([]string(nil), f.Values...)}
	}
	return out
}

// ToHTTP converts to a net/http header. Names are canonicalized by net/http.
func (h *Header) ToHTTP() http.Header {
	out := make(http.Header, h.Len())
	for _, f := range h.Fields() {
		for _, v := range f.Values {
			out.Add(f.Name, v)
		}
	}
	return out
}

// Map flattens the header to first values, the shape scripts consume.
func (h *Header) Map() map[string]string {
	out := make(map[string]string, h.Len())
	for _, f := range h.Fields() {
		if len(f.Values) > 0 {
			out[f.Name] = f.Values[0]
		}
	}
	return out
}
