package ddns

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/cloudflare/cloudflare-go"
	"github.com/rs/zerolog"
)

// UsingCloudflare registers Cloudflare as the update provider.
// token must be an API token with DNS edit permission for the domain's zone.
func UsingCloudflare(token string) clientOption {
	return func(c *client) (err error) {
		if c.Provider, err = newCloudflareProvider(token); err != nil {
			return fmt.Errorf("ddns.UsingCloudflare: error creating cloudflare DNS provider: %w", err)
		}
		return nil
	}
}

func newCloudflareProvider(token string) (cf *cloudflareProvider, err error) {
	cf = new(cloudflareProvider)
	cf.api, err = cloudflare.NewWithAPIToken(token)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}
	cf.logger = zerolog.Nop()
	cf.comment = "managed by ddns"
	return cf, nil
}

// cloudflareProvider implements ddns.Provider.
//
// It should be constructed through UsingCloudflare.
type cloudflareProvider struct {
	api     *cloudflare.API
	logger  zerolog.Logger
	domain  string
	comment string // optional comment to attach to each new DNS entry
}

// UpdateRecord upserts a single A record for host within the domain's zone.
func (cf *cloudflareProvider) UpdateRecord(ctx context.Context, host string, addr netip.Addr) error {
	if cf.api == nil {
		return errors.New("cloudflare provider must be constructed with ddns.UsingCloudflare")
	}

	name := recordName(host, cf.domain)
	zid, err := cf.getZoneIDFromDomain(ctx, cf.domain)
	if err != nil {
		return fmt.Errorf("unable to get zone ID for %s: %w", cf.domain, err)
	}
	cf.logger.Debug().Str("zone", zid).Str("record", name).Msg("looking up existing A records")

	records, _, err := cf.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zid), cloudflare.ListDNSRecordsParams{
		Type: "A",
		Name: name,
	})
	if err != nil {
		return fmt.Errorf("error listing DNS records for %s: %w", name, err)
	}

	content := addr.String()
	for _, r := range records {
		if r.Content == content {
			cf.logger.Info().Str("record", name).Str("ip", content).Msg("record already up to date")
			return nil
		}
		_, err := cf.api.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(zid), cloudflare.UpdateDNSRecordParams{
			ID:      r.ID,
			Type:    "A",
			Name:    name,
			Content: content,
		})
		if err != nil {
			return fmt.Errorf("error updating DNS record %s: %w", r.ID, err)
		}
		cf.logger.Info().Str("record", name).Str("ip", content).Msg("updated existing record")
		return nil
	}

	record, err := cf.api.CreateDNSRecord(ctx, cloudflare.ZoneIdentifier(zid), cloudflare.CreateDNSRecordParams{
		Type:    "A",
		Name:    name,
		Content: content,
		ZoneID:  zid,
		TTL:     60,
		Comment: cf.comment,
	})
	if err != nil {
		return fmt.Errorf("error creating DNS record: %w", err)
	}
	cf.logger.Info().Str("record", record.Name).Str("ip", content).Msg("created record")
	return nil
}

func recordName(host, domain string) string {
	if host == "" || host == "@" {
		return domain
	}
	return host + "." + domain
}

func (cf *cloudflareProvider) getZoneIDFromDomain(ctx context.Context, domain string) (zid string, err error) {
	zones, err := cf.api.ListZones(ctx)
	if err != nil {
		return "", fmt.Errorf("error listing zones: %w", err)
	}

	longest := 0
	for _, z := range zones {
		if strings.HasSuffix(domain, z.Name) && len(z.Name) > longest {
			longest, zid = len(z.Name), z.ID
		}
	}
	if longest == 0 {
		return "", fmt.Errorf("unable to find a zone matching %q", domain)
	}
	return zid, nil
}
