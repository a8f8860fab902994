package mock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// File is a routes file:
//
//	variables:
//	  version: v1
//	routes:
//	  - method: GET
//	    path: /users/{{id}}
//	    body: {"id": "{{id}}", "version": "{{version}}"}
type File struct {
	Variables map[string]string `yaml:"variables"`
	Routes    []RouteSpec       `yaml:"routes"`
}

// RouteSpec declares one route and its response. String values may use
// {{...}} templates, resolved per request.
type RouteSpec struct {
	Name        string            `yaml:"name"`
	Method      string            `yaml:"method"`
	Path        string            `yaml:"path"`
	Status      int               `yaml:"status"`
	ContentType string            `yaml:"contentType"`
	Headers     map[string]string `yaml:"headers"`
	// Body is sent as is when it is a string and as JSON otherwise.
	Body  any    `yaml:"body"`
	Delay string `yaml:"delay"`
	// Schema validates JSON request bodies: an inline schema or the path of
	// a schema file relative to the routes file.
	Schema  any               `yaml:"schema"`
	SignIn  bool              `yaml:"signIn"`
	Session map[string]string `yaml:"session"`
	Cookies map[string]string `yaml:"cookies"`
	// Redirect makes the response a 302 to the templated path.
	Redirect string `yaml:"redirect"`
	// Close ends the caller's session.
	Close bool `yaml:"close"`
}

// LoadFile reads and parses a routes file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes file %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse routes file %s: %w", path, err)
	}
	return f, nil
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// compile turns the file into routes. Schema paths are resolved against
// baseDir.
func (f *File) compile(baseDir string) ([]*Route, error) {
	routes := make([]*Route, 0, len(f.Routes))
	for i, spec := range f.Routes {
		route, err := spec.compile(baseDir)
		if err != nil {
			name := spec.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i+1)
			}
			return nil, fmt.Errorf("route %s: %w", name, err)
		}
		routes = append(routes, route)
	}
	return routes, nil
}

func (s RouteSpec) compile(baseDir string) (*Route, error) {
	if s.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	method := strings.ToUpper(s.Method)
	if method == "" {
		method = "GET"
	}
	resp := &Response{
		StatusCode:  s.Status,
		ContentType: s.ContentType,
		Headers:     s.Headers,
		SignIn:      s.SignIn,
		Session:     s.Session,
		Cookies:     s.Cookies,
		Redirect:    s.Redirect,
		Close:       s.Close,
	}
	if resp.StatusCode == 0 {
		resp.StatusCode = 200
	}

	switch body := s.Body.(type) {
	case nil:
	case string:
		resp.Body = body
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("invalid body: %w", err)
		}
		resp.Body = string(data)
		if resp.ContentType == "" {
			resp.ContentType = "application/json"
		}
	}

	if s.Delay != "" {
		d, err := time.ParseDuration(s.Delay)
		if err != nil {
			return nil, fmt.Errorf("invalid delay %q: %w", s.Delay, err)
		}
		resp.Delay = d
	}

	schema, err := loadSchema(s.Schema, baseDir)
	if err != nil {
		return nil, err
	}

	pattern := normalizePath(s.Path)
	return &Route{
		Method:      method,
		PathPattern: pattern,
		PathRegex:   createPathRegex(pattern),
		Name:        s.Name,
		Schema:      schema,
		Response:    resp,
	}, nil
}

func loadSchema(v any, baseDir string) (*gojsonschema.Schema, error) {
	var data []byte
	switch s := v.(type) {
	case nil:
		return nil, nil
	case string:
		path := s
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file: %w", err)
		}
		data = b
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("invalid schema: %w", err)
		}
		data = b
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return schema, nil
}
