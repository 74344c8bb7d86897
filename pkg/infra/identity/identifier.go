package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/cinescope/aiguard/pkg/domain/client"
)

// HeaderReader abstracts request header access so identification can run
// against any HTTP framework's request type.
type HeaderReader interface {
	Get(key string) string
}

// fingerprintHeaders are concatenated in this fixed order to build the
// fingerprint entropy string. Changing the order changes every fingerprint.
var fingerprintHeaders = []string{
	"User-Agent",
	"Accept",
	"Accept-Language",
	"Accept-Encoding",
	"Connection",
	"Sec-Fetch-Site",
	"Sec-Fetch-Mode",
}

const fingerprintSeparator = "|"

type Identifier struct{}

func NewIdentifier() *Identifier {
	return &Identifier{}
}

// Identify derives a stable identity for the request, preferring a validated
// public IP over a multi-header fingerprint. It is a pure function of the
// headers: identical inputs always produce identical identities.
func (i *Identifier) Identify(h HeaderReader) (client.Identity, error) {
	if ip := FirstForwardedAddr(h.Get("X-Forwarded-For")); ip != "" && IsValidPublicIP(ip) {
		return client.NewIPIdentity(ip), nil
	}
	if ip := strings.TrimSpace(h.Get("X-Real-IP")); ip != "" && IsValidPublicIP(ip) {
		return client.NewIPIdentity(ip), nil
	}

	if h.Get("User-Agent") == "" || h.Get("Accept") == "" {
		return client.Identity{}, client.ErrUnidentifiable
	}

	parts := make([]string, 0, len(fingerprintHeaders)+1)
	for _, name := range fingerprintHeaders {
		parts = append(parts, h.Get(name))
	}
	// Any available address, private included, still adds entropy even when
	// it is not trustworthy enough to stand alone as an identity.
	if ip := anyAddr(h); ip != "" {
		parts = append(parts, ip)
	}

	digest := sha256.Sum256([]byte(strings.Join(parts, fingerprintSeparator)))
	return client.NewFingerprintIdentity(hex.EncodeToString(digest[:])[:32]), nil
}

func anyAddr(h HeaderReader) string {
	if ip := FirstForwardedAddr(h.Get("X-Forwarded-For")); ip != "" {
		return ip
	}
	return strings.TrimSpace(h.Get("X-Real-IP"))
}

// FirstForwardedAddr returns the first entry of a comma-separated
// X-Forwarded-For value, trimmed, or "" when the header is empty.
func FirstForwardedAddr(value string) string {
	if value == "" {
		return ""
	}
	first, _, _ := strings.Cut(value, ",")
	return strings.TrimSpace(first)
}
