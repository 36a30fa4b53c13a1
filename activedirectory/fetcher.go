package activedirectory

import (
	"context"
	"fmt"

	"f0oster/adexpiry/activedirectory/ldaphelpers"
	"f0oster/adexpiry/resolver"

	"github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"
)

// ConnectFunc opens a bound instance rooted at a domain's naming context.
type ConnectFunc func(ctx context.Context, domain Domain) (*ActiveDirectoryInstance, error)

// DialDomain returns a ConnectFunc that binds to the domain by its DNS name,
// leaving DC selection to DNS.
func DialDomain(username, password string, pageSize uint32, useTLS bool, logger *zap.Logger) ConnectFunc {
	return func(ctx context.Context, domain Domain) (*ActiveDirectoryInstance, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ad := NewActiveDirectoryInstance(domain.NamingContext, domain.DNSName, pageSize, useTLS, logger)
		if err := ad.Connect(username, password); err != nil {
			return nil, err
		}
		return ad, nil
	}
}

// DomainError records why a domain contributed nothing to a run.
type DomainError struct {
	Domain string
	Err    error
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("domain %s: %v", e.Domain, e.Err)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

type Fetcher struct {
	connect         ConnectFunc
	extraAttributes []string
	logger          *zap.Logger
}

// NewFetcher builds a fetcher. extraAttributes are requested on top of the fixed
// attribute set, typically the override and extension attributes.
func NewFetcher(connect ConnectFunc, extraAttributes []string, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		connect:         connect,
		extraAttributes: extraAttributes,
		logger:          logger.With(zap.String("component", "fetcher")),
	}
}

// FetchDomain reads every account and contact of one domain.
func (f *Fetcher) FetchDomain(ctx context.Context, domain Domain) (resolver.Input, error) {
	var in resolver.Input

	ad, err := f.connect(ctx, domain)
	if err != nil {
		return in, &DomainError{Domain: domain.DNSName, Err: err}
	}
	defer ad.Close()

	err = ad.FetchPagedEntriesWithCallback(ctx, domain.NamingContext, ldaphelpers.AllUserObjects,
		withExtra(accountAttributes, f.extraAttributes...),
		func(entries []*ldap.Entry) error {
			for _, entry := range entries {
				in.Accounts = append(in.Accounts, ParseAccount(entry, domain.NetBIOSName))
			}
			return nil
		})
	if err != nil {
		return resolver.Input{}, &DomainError{Domain: domain.DNSName, Err: fmt.Errorf("fetching accounts: %w", err)}
	}

	err = ad.FetchPagedEntriesWithCallback(ctx, domain.NamingContext, ldaphelpers.AllContactObjects,
		withExtra(contactAttributes, f.extraAttributes...),
		func(entries []*ldap.Entry) error {
			for _, entry := range entries {
				in.Contacts = append(in.Contacts, ParseContact(entry))
			}
			return nil
		})
	if err != nil {
		return resolver.Input{}, &DomainError{Domain: domain.DNSName, Err: fmt.Errorf("fetching contacts: %w", err)}
	}

	f.logger.Info("fetched domain",
		zap.String("domain", domain.DNSName),
		zap.Int("accounts", len(in.Accounts)),
		zap.Int("contacts", len(in.Contacts)),
	)
	return in, nil
}

// FetchForest fetches domains in order and concatenates their objects. A domain
// that fails is logged and skipped; only cancellation of ctx is returned.
func (f *Fetcher) FetchForest(ctx context.Context, domains []Domain) (resolver.Input, error) {
	var all resolver.Input
	for _, domain := range domains {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		in, err := f.FetchDomain(ctx, domain)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			f.logger.Error("domain fetch failed, skipping", zap.Error(err))
			continue
		}
		all.Accounts = append(all.Accounts, in.Accounts...)
		all.Contacts = append(all.Contacts, in.Contacts...)
	}
	return all, nil
}
