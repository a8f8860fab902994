package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitwire/packages/core/config"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitRequestFailure},
		{"usage", usageErrorf("bad %s", "flag"), ExitUsageError},
		{"wrapped", fmt.Errorf("outer: %w", withExitCode(ExitNetworkError, errors.New("refused"))), ExitNetworkError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
	assert.Nil(t, withExitCode(ExitConfigError, nil))
}

func resetRequestFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		reqHeaderFlags, reqFormFlags, reqFileFlags, reqCookieFlags = nil, nil, nil, nil
		reqDataFlag, reqTimeoutFlag, reqProxyFlag = "", "", ""
		reqAsyncFlag, reqJSONFlag, reqFailFlag, reqInsecure = false, false, false, false
		reqRepeatFlag = 1
		reqCaptureFlag = nil
	})
}

func TestBuildRequest(t *testing.T) {
	resetRequestFlags(t)
	dir := t.TempDir()
	bodyFile := filepath.Join(dir, "body.json")
	require.NoError(t, os.WriteFile(bodyFile, []byte(`{"a":1}`), 0o644))

	reqHeaderFlags = []string{"X-Trace: t1"}
	reqCookieFlags = []string{"sid=abc"}
	reqDataFlag = "@" + bodyFile

	b, err := buildRequest("", "post", "http://localhost:3000/users")
	require.NoError(t, err)
	req, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "t1", req.Header.Get("X-Trace"))
	assert.Equal(t, "sid=abc", req.Header.Get("Cookie"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(req.Body))
}

func TestBuildRequest_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		method string
		url    string
		setup  func()
	}{
		{"method", "FETCH", "http://localhost/", func() {}},
		{"url", "GET", "ftp://localhost/", func() {}},
		{"header", "GET", "http://localhost/", func() { reqHeaderFlags = []string{"NoColon"} }},
		{"cookie", "GET", "http://localhost/", func() { reqCookieFlags = []string{"novalue"} }},
		{"form", "POST", "http://localhost/", func() { reqFormFlags = []string{"=x"} }},
		{"file", "POST", "http://localhost/", func() { reqFileFlags = []string{"avatar=me.png"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetRequestFlags(t)
			tt.setup()
			_, err := buildRequest("", tt.method, tt.url)
			assert.Equal(t, ExitUsageError, exitCode(err))
		})
	}
}

func TestRequestCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
		fmt.Fprintf(w, `{"method":%q,"form":%q}`, r.Method, string(body))
	}))
	defer srv.Close()
	appConfig = config.DefaultConfig()

	tests := []struct {
		name     string
		args     []string
		setup    func()
		wantCode int
		want     []string
	}{
		{
			name: "pooled form",
			args: []string{"POST", srv.URL + "/login"},
			setup: func() {
				reqFormFlags = []string{"user=ann"}
			},
			want: []string{"200 OK", `"form": "user=ann"`},
		},
		{
			name: "async repeat",
			args: []string{"GET", srv.URL + "/"},
			setup: func() {
				reqAsyncFlag = true
				reqRepeatFlag = 3
			},
			want: []string{"200 OK", "3 total, 0 errors"},
		},
		{
			name: "json output",
			args: []string{"GET", srv.URL + "/"},
			setup: func() {
				reqJSONFlag = true
				reqCaptureFlag = []string{"m=body.method"}
			},
			want: []string{`"statusCode": 200`, `"method": "GET"`, `"m": "GET"`},
		},
		{
			name:     "bad capture",
			args:     []string{"GET", srv.URL + "/"},
			setup:    func() { reqCaptureFlag = []string{"nope"} },
			wantCode: ExitUsageError,
		},
		{
			name:     "fail on 404",
			args:     []string{"GET", srv.URL + "/missing"},
			setup:    func() { reqFailFlag = true },
			wantCode: ExitRequestFailure,
			want:     []string{"404 Not Found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetRequestFlags(t)
			reqRepeatFlag = 1
			tt.setup()

			var buf bytes.Buffer
			requestCmd.SetOut(&buf)
			err := requestCommand(requestCmd, tt.args)
			assert.Equal(t, tt.wantCode, exitCode(err))
			for _, s := range tt.want {
				assert.Contains(t, buf.String(), s)
			}
		})
	}
}

func TestMockSettings(t *testing.T) {
	t.Cleanup(func() {
		mockPortFlag = config.DefaultPort
		mockDelayFlag = "0"
		mockRequireSignInFlag = false
	})
	require.NoError(t, mockCmd.Flags().Set("port", "4100"))
	require.NoError(t, mockCmd.Flags().Set("delay", "250ms"))

	cfg, err := mockSettings(mockCmd, config.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 4100, cfg.Server.Port)
	assert.Equal(t, 250, cfg.Server.Delay)
	assert.Equal(t, "/", cfg.Server.APIPrefix)
	assert.Equal(t, "/", cfg.Server.HomePagePath)
	assert.True(t, cfg.Server.AutoCreateSession)

	mockRequireSignInFlag = true
	cfg, err = mockSettings(mockCmd, config.DefaultConfig())
	require.NoError(t, err)
	assert.False(t, cfg.Server.AutoCreateSession)

	require.NoError(t, mockCmd.Flags().Set("delay", "soon"))
	_, err = mockSettings(mockCmd, config.DefaultConfig())
	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestVersionCommand(t *testing.T) {
	version, buildTime = "1.2.3", "2026-01-02"
	t.Cleanup(func() { version, buildTime, versionShort = "dev", "unknown", false })

	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "hitwire 1.2.3 (built 2026-01-02)")

	out.Reset()
	versionShort = true
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "1.2.3\n", out.String())
}

func TestCompletionCommand(t *testing.T) {
	var out bytes.Buffer
	completionCmd.SetOut(&out)
	t.Cleanup(func() { completionCmd.SetOut(nil) })

	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			out.Reset()
			require.NoError(t, completionCmd.RunE(completionCmd, []string{shell}))
			assert.Contains(t, out.String(), "hitwire")
		})
	}

	err := completionCmd.RunE(completionCmd, []string{"tcsh"})
	assert.Equal(t, ExitUsageError, exitCode(err))
}
