package output

import (
	"encoding/json"
	"io"
	"os"

	hhttp "github.com/abdul-hamid-achik/hitwire/packages/http"
)

// JSONResponse is the machine-readable rendering of a response.
type JSONResponse struct {
	StatusCode int                 `json:"statusCode"`
	Status     string              `json:"status"`
	Headers    map[string][]string `json:"headers,omitempty"`
	Cookies    []JSONCookie        `json:"cookies,omitempty"`
	Body       json.RawMessage     `json:"body,omitempty"`
	Text       string              `json:"text,omitempty"`
	Size       int                 `json:"size"`
	Duration   float64             `json:"duration"` // milliseconds
	Request    *JSONRequest        `json:"request,omitempty"`
	Captures   map[string]any      `json:"captures,omitempty"`
}

// JSONRequest represents request details
type JSONRequest struct {
	Method  string              `json:"method"`
	URL     string              `json:"url"`
	Headers map[string][]string `json:"headers,omitempty"`
}

type JSONCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Path   string `json:"path,omitempty"`
	Domain string `json:"domain,omitempty"`
}

// JSONFormatter writes one JSON document per response.
type JSONFormatter struct {
	writer io.Writer
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{writer: os.Stdout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func WithJSONWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResponse(resp *hhttp.Response, captures map[string]any) error {
	out := ToJSON(resp)
	if len(captures) > 0 {
		out.Captures = captures
	}
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ToJSON converts a response. JSON bodies are embedded as values and
// everything else as text.
func ToJSON(resp *hhttp.Response) JSONResponse {
	out := JSONResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    headerMap(resp.Header),
		Size:       len(resp.Body),
		Duration:   float64(resp.Duration.Microseconds()) / 1000,
	}
	if resp.IsJSON() && json.Valid(resp.Body) {
		out.Body = json.RawMessage(resp.Body)
	} else if len(resp.Body) > 0 {
		out.Text = resp.BodyString()
	}
	for _, c := range resp.Cookies() {
		out.Cookies = append(out.Cookies, JSONCookie{Name: c.Name, Value: c.Value, Path: c.Path, Domain: c.Domain})
	}
	if req := resp.Request; req != nil {
		out.Request = &JSONRequest{Method: req.Method, URL: req.URL, Headers: headerMap(req.Header)}
	}
	return out
}

func headerMap(h *hhttp.Header) map[string][]string {
	if h == nil {
		return nil
	}
	fields := h.Fields()
	if len(fields) == 0 {
		return nil
	}
	m := make(map[string][]string, len(fields))
	for _, field := range fields {
		m[field.Name] = field.Values
	}
	return m
}
