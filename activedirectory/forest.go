package activedirectory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"f0oster/adexpiry/activedirectory/ldaphelpers"

	"go.uber.org/zap"
)

var ErrNoDomains = errors.New("no domains found in forest")

// Domain is one domain of the forest as described by its crossRef object.
type Domain struct {
	DNSName       string
	NetBIOSName   string
	NamingContext string
}

func (d Domain) String() string {
	return d.DNSName
}

// DiscoverDomains lists the forest's domains from the partitions container of
// the configuration naming context, in directory order. When only is non-empty
// the result is restricted to those DNS names.
func (ad *ActiveDirectoryInstance) DiscoverDomains(ctx context.Context, only []string) ([]Domain, error) {
	partitions := "CN=Partitions,CN=Configuration," + ad.BaseDn

	entries, err := ad.FetchAll(ctx, partitions, ldaphelpers.DomainCrossRefs().String(),
		[]string{"nETBIOSName", "dnsRoot", "nCName"})
	if err != nil {
		return nil, fmt.Errorf("failed to read crossRef objects under %s: %w", partitions, err)
	}

	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		if name = strings.TrimSpace(name); name != "" {
			wanted[strings.ToLower(name)] = true
		}
	}

	var domains []Domain
	for _, entry := range entries {
		domain := Domain{
			DNSName:       entry.GetAttributeValue("dnsRoot"),
			NetBIOSName:   entry.GetAttributeValue("nETBIOSName"),
			NamingContext: entry.GetAttributeValue("nCName"),
		}
		if domain.DNSName == "" || domain.NamingContext == "" {
			ad.logger.Warn("skipping incomplete crossRef", zap.String("dn", entry.DN))
			continue
		}
		if len(wanted) > 0 && !wanted[strings.ToLower(domain.DNSName)] {
			continue
		}
		domains = append(domains, domain)
	}

	if len(domains) == 0 {
		return nil, ErrNoDomains
	}
	return domains, nil
}
