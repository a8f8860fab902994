package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitwire/packages/resource"
	"github.com/abdul-hamid-achik/hitwire/packages/session"
)

func TestContext_SetAPIIfPathStartsWith(t *testing.T) {
	tests := []struct {
		path         string
		prefix       string
		wantAPI      bool
		wantResource string
		wantPath     string
	}{
		{"/api/users/42", "/api/", true, "/api/users", "/users/42"},
		{"/api/users", "/api/", true, "/api/users", "/users"},
		{"/api/", "/api/", true, "/api/", "/"},
		{"/apix/users", "/api/", false, "", "/apix/users"},
		{"/index", "/api/", false, "", "/index"},
		{"/api/users", "", false, "", "/api/users"},
	}

	for _, tt := range tests {
		t.Run(tt.path+" "+tt.prefix, func(t *testing.T) {
			c := NewContext(DefaultConfig(), NewRequest("GET", tt.path))
			assert.Equal(t, tt.wantAPI, c.SetAPIIfPathStartsWith(tt.prefix))
			assert.Equal(t, tt.wantAPI, c.API)
			assert.Equal(t, tt.wantResource, c.Request.ResourcePath)
			assert.Equal(t, tt.wantPath, c.Request.Path)
		})
	}
}

func TestContext_State(t *testing.T) {
	c := NewContext(DefaultConfig(), NewRequest("GET", "/index"))
	assert.True(t, c.Closed())
	assert.Empty(t, c.SessionID())

	c.Session = session.New("s1", 1, 2)
	assert.False(t, c.Closed())
	assert.Equal(t, "s1", c.SessionID())
	c.Close()
	assert.True(t, c.Closed())

	c.Session = session.Temporary
	assert.True(t, c.Closed())

	assert.True(t, c.Switch("a", map[string]any{"x": 1}))
	assert.False(t, c.Switch("b", nil))
	assert.True(t, c.Switched())
	assert.Equal(t, "a", c.SwitchTemplate)

	first, second := c.NextID(), c.NextID()
	assert.True(t, strings.HasPrefix(first, "1-"))
	assert.True(t, strings.HasPrefix(second, "2-"))
}

func TestContext_InitSession(t *testing.T) {
	store := session.NewMemoryStore()
	cfg := DefaultConfig()
	c := NewContext(cfg, NewRequest("POST", "/signin"))
	c.Session = session.Temporary

	require.NoError(t, c.InitSession(store, 100))
	assert.True(t, c.NewSession)
	assert.True(t, c.Session.Persistent())
	assert.Equal(t, int64(100+cfg.SessionExpiry), c.Session.Expires)

	id := c.Session.ID
	require.NoError(t, c.InitSession(store, 200))
	assert.Equal(t, id, c.Session.ID)
	assert.Equal(t, 1, store.Len())
}

func TestRequest(t *testing.T) {
	req := NewRequest("get", "/search?q=go&page=2")
	req.Header.Set("Cookie", "a=1; hitwire.sid=abc")
	req.Header.Set("HX-Request", "True")

	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/search", req.Path)
	assert.Equal(t, "go", req.Param("q"))
	assert.NotEmpty(t, req.ID)
	assert.True(t, req.IsAjax())

	v, ok := req.Cookie("hitwire.sid")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
	_, ok = req.Cookie("missing")
	assert.False(t, ok)

	form := NewRequest("POST", "/signin")
	form.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	form.Body = []byte("user=ann+lee&pass=x")
	assert.Equal(t, "ann lee", form.Param("user"))
	k, ok := form.Kind()
	assert.True(t, ok)
	assert.Equal(t, resource.URLEncoded, k)
	assert.False(t, form.IsForStaticResource())

	tests := []struct {
		method string
		path   string
		want   bool
	}{
		{"GET", "/app.js", true},
		{"GET", "/img/logo.png", true},
		{"GET", "/index", false},
		{"GET", "/file.", false},
		{"POST", "/app.js", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewRequest(tt.method, tt.path).IsForStaticResource(), tt.method+" "+tt.path)
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{HomePagePath: "home", SignInPath: "login", HostContextPath: "/app/"}.withDefaults()
	assert.Equal(t, "/home", cfg.HomePagePath)
	assert.Equal(t, "/login", cfg.SignInPath)
	assert.Equal(t, DefaultSignOutPath, cfg.SignOutPath)
	assert.Equal(t, DefaultSessionCookieName, cfg.SessionCookieName)
	assert.Equal(t, DefaultAPIPrefix, cfg.APIPrefix)
	assert.Equal(t, int64(DefaultSessionExpiry), cfg.SessionExpiry)
	assert.Equal(t, "/app", cfg.HostContextPath)
	assert.Equal(t, "/app/login", cfg.redirectPath())
	assert.NoError(t, cfg.Validate())
}

func TestResponseBuilder_Status(t *testing.T) {
	rb := NewResponseBuilder(Config{SessionCookieName: "sid", HostContextPath: "/app"}, nil)
	resp := rb.SessionCookie("abc").Location("/next").Status(302)

	assert.Equal(t, 302, resp.StatusCode)
	assert.Equal(t, "/next", resp.HeaderValue("Location"))
	assert.Equal(t, []string{"sid=abc; Path=/app; HttpOnly; SameSite=Lax"}, resp.Header.Values("Set-Cookie"))

	resp = NewResponseBuilder(DefaultConfig(), nil).HTML([]byte("<p/>")).Status(200)
	assert.Equal(t, "text/html", resp.ContentType())
	assert.True(t, resp.Kind().IsHTML())

	rb = NewResponseBuilder(DefaultConfig(), nil).Session(session.Global, true).Session(session.New("x", 1, 2), false)
	assert.Empty(t, rb.Status(200).Header.Values("Set-Cookie"))
}

func TestFileSystemResolver(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "public")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "css", "app.css"), []byte("a{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secret.txt"), []byte("s"), 0o644))

	r := NewFileSystemResolver(root)
	rc, err := r.Resolve("/css/app.css")
	require.NoError(t, err)
	rc.Close()

	_, err = r.Resolve("../secret.txt")
	assert.Error(t, err)
	_, err = r.Resolve("/css")
	assert.Error(t, err)
	_, err = r.Resolve("/missing.css")
	assert.Error(t, err)
}
