package identity_test

import (
	"testing"

	"github.com/cinescope/aiguard/pkg/domain/client"
	"github.com/cinescope/aiguard/pkg/infra/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type headerMap map[string]string

func (h headerMap) Get(key string) string {
	return h[key]
}

func browserHeaders() headerMap {
	return headerMap{
		"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
		"Accept":          "application/json",
		"Accept-Language": "en-US,en;q=0.9",
		"Accept-Encoding": "gzip, deflate, br",
		"Connection":      "keep-alive",
		"Sec-Fetch-Site":  "same-origin",
		"Sec-Fetch-Mode":  "cors",
	}
}

func TestIdentify_PublicForwardedFor(t *testing.T) {
	identifier := identity.NewIdentifier()

	id, err := identifier.Identify(headerMap{"X-Forwarded-For": "8.8.8.8, 10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, client.IdentityKindIP, id.Kind)
	assert.Equal(t, "ip:8.8.8.8", id.Value)
}

func TestIdentify_FallsBackToRealIP(t *testing.T) {
	identifier := identity.NewIdentifier()

	id, err := identifier.Identify(headerMap{
		"X-Forwarded-For": "192.168.1.1",
		"X-Real-IP":       "203.0.113.7",
	})
	require.NoError(t, err)
	assert.Equal(t, "ip:203.0.113.7", id.Value)
}

func TestIdentify_FingerprintWhenNoPublicIP(t *testing.T) {
	identifier := identity.NewIdentifier()
	headers := browserHeaders()
	headers["X-Forwarded-For"] = "192.168.1.1"

	id, err := identifier.Identify(headers)
	require.NoError(t, err)
	assert.Equal(t, client.IdentityKindFingerprint, id.Kind)
	assert.Regexp(t, `^fingerprint:sha256:[0-9a-f]{32}$`, id.Value)
}

func TestIdentify_IdempotentAcrossCalls(t *testing.T) {
	identifier := identity.NewIdentifier()
	headers := browserHeaders()

	first, err := identifier.Identify(headers)
	require.NoError(t, err)
	second, err := identifier.Identify(headers)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestIdentify_FingerprintSensitiveToEachHeader(t *testing.T) {
	identifier := identity.NewIdentifier()
	base, err := identifier.Identify(browserHeaders())
	require.NoError(t, err)

	for _, name := range []string{
		"Accept-Language", "Accept-Encoding", "Connection", "Sec-Fetch-Site", "Sec-Fetch-Mode",
	} {
		headers := browserHeaders()
		headers[name] = "changed-value"
		changed, err := identifier.Identify(headers)
		require.NoError(t, err)
		assert.NotEqual(t, base.Value, changed.Value, "changing %s should change the fingerprint", name)
	}
}

func TestIdentify_Unidentifiable(t *testing.T) {
	identifier := identity.NewIdentifier()

	tests := []struct {
		name    string
		headers headerMap
	}{
		{"no headers at all", headerMap{}},
		{"missing user agent", headerMap{"Accept": "application/json"}},
		{"missing accept", headerMap{"User-Agent": "curl/8.0"}},
		{"private ip only", headerMap{"X-Forwarded-For": "10.0.0.5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := identifier.Identify(tt.headers)
			assert.ErrorIs(t, err, client.ErrUnidentifiable)
		})
	}
}

func TestIsValidPublicIP_RejectsSpecialRanges(t *testing.T) {
	for _, addr := range []string{
		"127.0.0.1", "10.0.0.5", "172.16.0.1", "192.168.1.1", "169.254.1.1",
		"224.0.0.1", "240.0.0.1", "0.0.0.0", "255.255.255.255",
		"::1", "::", "fe80::1", "fc00::1", "ff02::1", "2001::4", "2002::1",
		"not-an-ip", "", "999.1.1.1",
	} {
		assert.False(t, identity.IsValidPublicIP(addr), "expected %q to be rejected", addr)
	}
}

func TestIsValidPublicIP_AcceptsPublicAddresses(t *testing.T) {
	for _, addr := range []string{
		"8.8.8.8", "203.0.113.7", "2001:4860:4860::8888",
	} {
		assert.True(t, identity.IsValidPublicIP(addr), "expected %q to be accepted", addr)
	}
}

func TestFirstForwardedAddr(t *testing.T) {
	assert.Equal(t, "8.8.8.8", identity.FirstForwardedAddr(" 8.8.8.8 , 1.1.1.1"))
	assert.Equal(t, "1.2.3.4", identity.FirstForwardedAddr("1.2.3.4"))
	assert.Equal(t, "", identity.FirstForwardedAddr(""))
}
