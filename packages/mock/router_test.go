package mock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Match(t *testing.T) {
	f, err := Parse([]byte(`
routes:
  - name: user
    path: /users/{{id}}
  - name: post
    path: /users/{{ id }}/posts/{{postId}}
  - name: file
    path: /files/report.json
  - name: create
    method: post
    path: /users
  - name: any
    method: "*"
    path: /ping
`))
	require.NoError(t, err)
	routes, err := f.compile(t.TempDir())
	require.NoError(t, err)
	r := NewRouter(routes...)

	tests := []struct {
		method     string
		path       string
		wantRoute  string
		wantParams map[string]string
	}{
		{"GET", "/users/42", "user", map[string]string{"id": "42"}},
		{"get", "users/42/", "user", map[string]string{"id": "42"}},
		{"GET", "/users/1/posts/9", "post", map[string]string{"id": "1", "postId": "9"}},
		{"GET", "/files/report.json", "file", map[string]string{}},
		{"GET", "/files/reportXjson", "", nil},
		{"POST", "/users", "create", map[string]string{}},
		{"GET", "/users", "", nil},
		{"DELETE", "/ping", "any", map[string]string{}},
		{"GET", "/users/1/2", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			route, params := r.Match(tt.method, tt.path)
			if tt.wantRoute == "" {
				assert.Nil(t, route)
				return
			}
			require.NotNil(t, route)
			assert.Equal(t, tt.wantRoute, route.Name)
			assert.Equal(t, tt.wantParams, params)
		})
	}

	assert.Equal(t, []string{"POST"}, r.Allowed("/users"))
	assert.Empty(t, r.Allowed("/missing"))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing path", "routes:\n  - method: GET\n"},
		{"bad delay", "routes:\n  - path: /a\n    delay: soon\n"},
		{"bad schema", "routes:\n  - path: /a\n    schema: {type: 12}\n"},
		{"missing schema file", "routes:\n  - path: /a\n    schema: nope.json\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = f.compile(t.TempDir())
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("routes: [unclosed"))
	assert.Error(t, err)
}

func TestRouteSpec_Defaults(t *testing.T) {
	f, err := Parse([]byte("routes:\n  - path: /a\n    body: {ok: true}\n  - path: /b\n    body: plain\n"))
	require.NoError(t, err)
	routes, err := f.compile("")
	require.NoError(t, err)

	assert.Equal(t, "GET", routes[0].Method)
	assert.Equal(t, 200, routes[0].Response.StatusCode)
	assert.Equal(t, `{"ok":true}`, routes[0].Response.Body)
	assert.Equal(t, "application/json", routes[0].Response.ContentType)
	assert.Equal(t, "plain", routes[1].Response.Body)
	assert.Empty(t, routes[1].Response.ContentType)
}
