package dynip

import (
	"context"
	"fmt"
	"net/netip"
)

// FromString constructs a resolver that always reports addr.
// It is useful when the public address is known, e.g. for testing an update by hand.
func FromString(addr string) (Resolver, error) {
	a, err := netip.ParseAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse IP: %w", err)
	}
	if !a.Unmap().Is4() {
		return nil, fmt.Errorf("%s is not an IPv4 address", addr)
	}
	return staticResolver{ip: Resolved(a)}, nil
}

type staticResolver struct {
	ip IP
}

func (s staticResolver) Resolve(context.Context) IP {
	return s.ip
}
