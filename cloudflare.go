package dynip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"

	"github.com/cloudflare/cloudflare-go"
)

func newCloudflareMirror(token string) (*cloudflareMirror, error) {
	api, err := cloudflare.NewWithAPIToken(token)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}
	return &cloudflareMirror{
		api:     api,
		logger:  discard,
		comment: "managed by dynip",
	}, nil
}

// cloudflareMirror copies the address confirmed by the update service into A records of a Cloudflare zone.
//
// Only A records are touched; the update service is IPv4 only.
type cloudflareMirror struct {
	api     *cloudflare.API
	logger  *slog.Logger
	comment string // attached to each record we create
}

func (cf *cloudflareMirror) SetLogger(l *slog.Logger) { cf.logger = l }

// SetDNSRecords implements dynip.Provider.
// A records for domain that are not in addrs are removed, and missing ones are created.
func (cf *cloudflareMirror) SetDNSRecords(ctx context.Context, domain string, addrs []netip.Addr) error {
	if cf.api == nil {
		return errors.New("cloudflare mirror was not constructed with UsingCloudflare")
	}
	want := map[netip.Addr]bool{}
	for _, a := range addrs {
		a = a.Unmap()
		if !a.Is4() {
			return fmt.Errorf("%s is not an IPv4 address", a)
		}
		want[a] = true
	}

	zid, err := cf.zoneFor(ctx, domain)
	if err != nil {
		return fmt.Errorf("unable to get zone ID for %s: %w", domain, err)
	}
	rc := cloudflare.ZoneIdentifier(zid)

	records, _, err := cf.api.ListDNSRecords(ctx, rc, cloudflare.ListDNSRecordsParams{
		Type: "A",
		Name: domain,
	})
	if err != nil {
		return fmt.Errorf("error listing A records for %s: %w", domain, err)
	}
	cf.logger.Debug("existing records", "zone", zid, "domain", domain, "count", len(records))

	have := map[netip.Addr]bool{}
	for _, r := range records {
		a, err := netip.ParseAddr(r.Content)
		if err == nil && want[a] {
			have[a] = true
			continue
		}
		if err := cf.api.DeleteDNSRecord(ctx, rc, r.ID); err != nil {
			return fmt.Errorf("unable to delete DNS record %s: %w", r.ID, err)
		}
		cf.logger.Info("deleted stale record", "domain", domain, "content", r.Content)
	}

	for a := range want {
		if have[a] {
			continue
		}
		_, err := cf.api.CreateDNSRecord(ctx, rc, cloudflare.CreateDNSRecordParams{
			Type:    "A",
			Name:    domain,
			Content: a.String(),
			ZoneID:  zid,
			TTL:     60,
			Comment: cf.comment,
		})
		if err != nil {
			return fmt.Errorf("error creating DNS record: %w", err)
		}
		cf.logger.Info("created record", "domain", domain, "addr", a)
	}
	return nil
}

// zoneFor picks the zone with the longest name that is a suffix of domain.
func (cf *cloudflareMirror) zoneFor(ctx context.Context, domain string) (string, error) {
	zones, err := cf.api.ListZones(ctx)
	if err != nil {
		return "", fmt.Errorf("error listing zones: %w", err)
	}
	return longestZoneMatch(domain, zones)
}

func longestZoneMatch(domain string, zones []cloudflare.Zone) (zid string, err error) {
	domain = strings.TrimSuffix(strings.ToLower(domain), ".")
	best := 0
	for _, z := range zones {
		name := strings.ToLower(z.Name)
		if domain != name && !strings.HasSuffix(domain, "."+name) {
			continue
		}
		if len(name) > best {
			best, zid = len(name), z.ID
		}
	}
	if best == 0 {
		return "", fmt.Errorf("unable to find a zone matching %q", domain)
	}
	return zid, nil
}
