package dynip

import (
	"context"
	"net/netip"
)

// Resolver reports the public IP address of this host.
// Implementations never fail; failures are expressed as ResolveError or NotUsingProvider.
type Resolver interface {
	Resolve(context.Context) IP
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(context.Context) IP

func (f ResolverFunc) Resolve(ctx context.Context) IP { return f(ctx) }

// Provider sets DNS records for a domain on a secondary DNS service.
type Provider interface {
	SetDNSRecords(ctx context.Context, domain string, records []netip.Addr) error
}

// UpdateAPI is the provider's update service as used by the Engine.
// *UpdateClient implements it.
type UpdateAPI interface {
	SendIPUpdate(ctx context.Context, token, hostname string) (string, error)
	CheckForUpdate(ctx context.Context, check VersionCheck) (string, error)
	DownloadUpdate(ctx context.Context, url, dir string) (string, error)
}

// Account exposes the stored account settings the Engine needs.
// Implementations must be safe for concurrent use.
type Account interface {
	// CanSendIPUpdates reports whether a user name, a token and a working network selection are all present.
	CanSendIPUpdates() bool
	Token() string
	Hostname() string
	UserName() string
	UniqueID() string
}

// Observer receives Engine notifications.
//
// Methods are called synchronously from the Engine's goroutine.
// Implementations that touch state owned by another goroutine must hand the event off themselves;
// EventChannel does this with a channel.
type Observer interface {
	OnIPChanged(IP)
	// OnIPChecked is called on ticks where the IP did not change,
	// so displays of the time since the last update can be refreshed.
	OnIPChecked(minutesSinceUpdate int)
	OnIPUpdateResult(UpdateResponse)
	OnNewVersionAvailable(installerPath string)
}

type nopObserver struct{}

func (nopObserver) OnIPChanged(IP)                  {}
func (nopObserver) OnIPChecked(int)                 {}
func (nopObserver) OnIPUpdateResult(UpdateResponse) {}
func (nopObserver) OnNewVersionAvailable(string)    {}
