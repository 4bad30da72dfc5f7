package httpclient

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURL(t *testing.T) {
	cases := []struct {
		name    string
		url     string
		opts    Options
		wantErr string
	}{
		{name: "public https", url: "https://hooks.example.com/fire"},
		{name: "public http", url: "http://hooks.example.com/fire"},
		{name: "file scheme", url: "file:///etc/passwd", wantErr: "scheme"},
		{name: "gopher scheme", url: "gopher://example.com", wantErr: "scheme"},
		{name: "credentials", url: "https://user@evil.example.com/", wantErr: "credentials"},
		{name: "localhost", url: "http://localhost:8080/hook", wantErr: "localhost"},
		{name: "localhost subdomain", url: "http://api.localhost/hook", wantErr: "localhost"},
		{name: "loopback ip", url: "http://127.0.0.1:9/", wantErr: "private"},
		{name: "rfc1918", url: "http://10.0.0.5/", wantErr: "private"},
		{name: "link local", url: "http://169.254.169.254/latest/meta-data", wantErr: "private"},
		{name: "missing host", url: "https:///nope", wantErr: "hostname"},
		{name: "private allowed", url: "http://127.0.0.1:9/", opts: Options{AllowPrivate: true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateURL(tc.url, tc.opts)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	private := []string{"127.0.0.1", "10.1.2.3", "172.16.0.1", "192.168.1.1", "169.254.0.1", "0.0.0.0", "224.0.0.1", "240.0.0.1", "::1", "fe80::1"}
	for _, s := range private {
		assert.True(t, isPrivateIP(net.ParseIP(s)), s)
	}

	public := []string{"8.8.8.8", "93.184.216.34", "2606:4700::1111"}
	for _, s := range public {
		assert.False(t, isPrivateIP(net.ParseIP(s)), s)
	}
}

func TestNewBlocksPrivateDial(t *testing.T) {
	client := New(2*time.Second, Options{})

	_, err := client.Get("http://127.0.0.1:1/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private address blocked")
}
