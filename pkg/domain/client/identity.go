package client

import "errors"

var ErrUnidentifiable = errors.New("client could not be identified")

type IdentityKind string

const (
	IdentityKindIP          IdentityKind = "ip"
	IdentityKindFingerprint IdentityKind = "fingerprint"
)

// Identity is the derived key used to scope rate-limit counters to a client.
// Value carries its own prefix ("ip:<addr>" or "fingerprint:sha256:<hex>") so
// it can be used directly as a counter key component.
type Identity struct {
	Kind  IdentityKind
	Value string
}

func NewIPIdentity(addr string) Identity {
	return Identity{
		Kind:  IdentityKindIP,
		Value: "ip:" + addr,
	}
}

func NewFingerprintIdentity(digest string) Identity {
	return Identity{
		Kind:  IdentityKindFingerprint,
		Value: "fingerprint:sha256:" + digest,
	}
}

func (i Identity) IsZero() bool {
	return i.Value == ""
}
