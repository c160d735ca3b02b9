package dynip

import (
	"encoding/binary"
	"net/netip"
)

// IPKind classifies the outcome of a public IP lookup.
type IPKind uint8

const (
	// IPUnknown means no lookup has completed yet.
	IPUnknown IPKind = iota
	// IPNotUsingProvider means the lookup host does not exist from our resolver's point of view,
	// i.e. DNS resolution is not going through the provider.
	IPNotUsingProvider
	// IPResolveError means the lookup failed outright, usually because there is no network.
	IPResolveError
	// IPResolved means the lookup returned an address.
	IPResolved
)

func (k IPKind) String() string {
	switch k {
	case IPUnknown:
		return "unknown"
	case IPNotUsingProvider:
		return "not using provider"
	case IPResolveError:
		return "resolve error"
	case IPResolved:
		return "resolved"
	default:
		return "invalid"
	}
}

// IP is the public address of this host as observed by the provider,
// or the reason it could not be determined.
//
// The zero value is Unknown. IP values are comparable with ==.
type IP struct {
	kind IPKind
	addr netip.Addr
}

var (
	Unknown          = IP{kind: IPUnknown}
	NotUsingProvider = IP{kind: IPNotUsingProvider}
	ResolveError     = IP{kind: IPResolveError}
)

// Resolved returns an IP holding addr.
// IPv4-mapped IPv6 addresses are unmapped; an invalid addr yields ResolveError.
func Resolved(addr netip.Addr) IP {
	if !addr.IsValid() {
		return ResolveError
	}
	return IP{kind: IPResolved, addr: addr.Unmap()}
}

// IPFromUint32 converts the legacy integer encoding, where 0, 1 and 2 are the Unknown,
// NotUsingProvider and ResolveError sentinels and anything greater is a big-endian IPv4 address.
func IPFromUint32(v uint32) IP {
	switch v {
	case 0:
		return Unknown
	case 1:
		return NotUsingProvider
	case 2:
		return ResolveError
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return Resolved(netip.AddrFrom4(b))
}

// Uint32 is the inverse of IPFromUint32.
// Resolved addresses that are not IPv4 encode as 0.
func (ip IP) Uint32() uint32 {
	switch ip.kind {
	case IPNotUsingProvider:
		return 1
	case IPResolveError:
		return 2
	case IPResolved:
		if ip.addr.Is4() {
			b := ip.addr.As4()
			return binary.BigEndian.Uint32(b[:])
		}
	}
	return 0
}

func (ip IP) Kind() IPKind { return ip.kind }

// Addr returns the resolved address, or the zero netip.Addr for the sentinel kinds.
func (ip IP) Addr() netip.Addr { return ip.addr }

// IsResolved reports whether ip holds a real address.
func (ip IP) IsResolved() bool { return ip.kind == IPResolved }

func (ip IP) String() string {
	if ip.kind == IPResolved {
		return ip.addr.String()
	}
	return ip.kind.String()
}
