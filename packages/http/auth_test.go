package http

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWWWAuthenticate(t *testing.T) {
	params := ParseWWWAuthenticate(`DIGEST realm="api", nonce="n1", qop="auth", opaque="o"`)
	assert.Equal(t, "api", params["realm"])
	assert.Equal(t, "n1", params["nonce"])
	assert.Equal(t, "auth", params["qop"])
	assert.Equal(t, "o", params["opaque"])
}

func TestDigestAuth_Response(t *testing.T) {
	// RFC 2617 section 3.5
	d := &DigestAuth{
		Username: "Mufasa",
		Password: "Circle Of Life",
		Realm:    "testrealm@host.com",
		Nonce:    "dcd98b7102dd2f0e8b11d0f600bfb0c093",
		URI:      "/dir/index.html",
		Qop:      "auth",
		Nc:       "00000001",
		Cnonce:   "0a4f113b",
		Method:   "GET",
	}
	assert.Equal(t, "6629fae49393a05397450978507c4ef1", d.ComputeDigestResponse())

	header := d.BuildAuthorizationHeader()
	assert.True(t, strings.HasPrefix(header, "Digest "))
	assert.Contains(t, header, `response="6629fae49393a05397450978507c4ef1"`)
	assert.Contains(t, header, "qop=auth")
	assert.NotContains(t, header, "opaque")
}

func TestGenerateCnonce(t *testing.T) {
	a, err := GenerateCnonce()
	require.NoError(t, err)
	b, err := GenerateCnonce()
	require.NoError(t, err)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}

func TestSignAWSRequest(t *testing.T) {
	creds := AuthConfig{AccessKey: "AKIDEXAMPLE", SecretKey: "secret", Region: "eu-west-1", Service: "execute-api"}
	now := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	req := NewRequest("POST", "https://api.example.com/v1/items?b=2&a=1")
	req.Body = []byte(`{"x":1}`)
	auth, err := SignAWSRequest(req, creds, now)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(auth, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20240301/eu-west-1/execute-api/aws4_request"))
	assert.Contains(t, auth, "SignedHeaders=host;x-amz-content-sha256;x-amz-date")
	assert.Equal(t, "20240301T123000Z", req.Header.Get("X-Amz-Date"))
	assert.Equal(t, "api.example.com", req.Header.Get("Host"))
	assert.Equal(t, sha256Hex([]byte(`{"x":1}`)), req.Header.Get("X-Amz-Content-Sha256"))

	again := NewRequest("POST", "https://api.example.com/v1/items?a=1&b=2")
	again.Body = []byte(`{"x":1}`)
	auth2, err := SignAWSRequest(again, creds, now)
	require.NoError(t, err)
	assert.Equal(t, auth, auth2, "query order does not change the signature")

	_, err = SignAWSRequest(NewRequest("GET", "https://x"), AuthConfig{}, now)
	assert.Error(t, err)
}

func TestTransportError(t *testing.T) {
	err := &TransportError{URL: "http://x", Elapsed: 1500 * time.Millisecond, Err: ErrClientClosed}
	assert.Equal(t, "http call failed after 1500 ms: http://x: client closed", err.Error())
	assert.ErrorIs(t, err, ErrClientClosed)
}
