package identity

import "net"

// Prefixes that never identify a routable public client. Forged
// X-Forwarded-For values carrying these ranges are the cheapest spoofing
// vector, so they are rejected before an address is trusted as an identity.
var specialUseCIDRs = []string{
	"127.0.0.0/8",    // loopback
	"10.0.0.0/8",     // private
	"172.16.0.0/12",  // private
	"192.168.0.0/16", // private
	"169.254.0.0/16", // link-local
	"224.0.0.0/4",    // multicast
	"240.0.0.0/4",    // reserved
	"100.64.0.0/10",  // carrier-grade NAT
	"fc00::/7",       // unique local
	"fe80::/10",      // link-local
	"ff00::/8",       // multicast
	"2001::/32",      // Teredo tunneling
	"2002::/16",      // 6to4 tunneling
	"100::/64",       // discard-only
}

var specialUseNets []*net.IPNet

func init() {
	for _, cidr := range specialUseCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("identity: bad special-use cidr " + cidr)
		}
		specialUseNets = append(specialUseNets, network)
	}
}

// IsValidPublicIP reports whether s is a syntactically valid IPv4/IPv6
// address outside every loopback, private, link-local, multicast and
// reserved range.
func IsValidPublicIP(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil {
		return false
	}
	if ip.IsUnspecified() || ip.IsLoopback() {
		return false
	}
	if v4 := ip.To4(); v4 != nil && v4.Equal(net.IPv4bcast) {
		return false
	}
	for _, network := range specialUseNets {
		if network.Contains(ip) {
			return false
		}
	}
	return true
}
