package activedirectory

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"f0oster/adexpiry/activedirectory/ldaphelpers"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeDirectory serves canned pages per (base DN, filter) and records requests.
type fakeDirectory struct {
	pages    map[string][][]*ldap.Entry
	err      error
	requests []*ldap.SearchRequest
}

func searchKey(baseDN, filter string) string {
	return baseDN + "|" + filter
}

func (f *fakeDirectory) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}

	page := 0
	if c, ok := ldap.FindControl(req.Controls, ldap.ControlTypePaging).(*ldap.ControlPaging); ok && len(c.Cookie) > 0 {
		page, _ = strconv.Atoi(string(c.Cookie))
	}

	pages := f.pages[searchKey(req.BaseDN, req.Filter)]
	result := &ldap.SearchResult{}
	if page < len(pages) {
		result.Entries = pages[page]
	}

	paging := &ldap.ControlPaging{}
	if page+1 < len(pages) {
		paging.SetCookie([]byte(strconv.Itoa(page + 1)))
	}
	result.Controls = []ldap.Control{paging}
	return result, nil
}

func newTestInstance(t *testing.T, dir *fakeDirectory, baseDN string) *ActiveDirectoryInstance {
	ad := NewActiveDirectoryInstance(baseDN, "dc.test", 2, false, zaptest.NewLogger(t))
	ad.conn = dir
	return ad
}

func TestFetchPagedEntriesWithCallback_FollowsCookie(t *testing.T) {
	dir := &fakeDirectory{pages: map[string][][]*ldap.Entry{
		searchKey("DC=one,DC=test", ldaphelpers.AllUserObjects): {
			{ldap.NewEntry("CN=A,DC=one,DC=test", nil), ldap.NewEntry("CN=B,DC=one,DC=test", nil)},
			{ldap.NewEntry("CN=C,DC=one,DC=test", nil)},
		},
	}}
	ad := newTestInstance(t, dir, "DC=one,DC=test")

	var pageSizes []int
	err := ad.FetchPagedEntriesWithCallback(context.Background(), "DC=one,DC=test", ldaphelpers.AllUserObjects, nil,
		func(entries []*ldap.Entry) error {
			pageSizes = append(pageSizes, len(entries))
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, pageSizes)
	assert.Len(t, dir.requests, 2)
}

func TestFetchPagedEntriesWithCallback_Errors(t *testing.T) {
	ad := newTestInstance(t, &fakeDirectory{err: errors.New("boom")}, "DC=one,DC=test")
	err := ad.FetchPagedEntriesWithCallback(context.Background(), "DC=one,DC=test", ldaphelpers.AllObjects, nil,
		func([]*ldap.Entry) error { return nil })
	assert.ErrorContains(t, err, "boom")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ad = newTestInstance(t, &fakeDirectory{}, "DC=one,DC=test")
	err = ad.FetchPagedEntriesWithCallback(ctx, "DC=one,DC=test", ldaphelpers.AllObjects, nil,
		func([]*ldap.Entry) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)

	disconnected := NewActiveDirectoryInstance("DC=one,DC=test", "dc.test", 10, false, zaptest.NewLogger(t))
	_, err = disconnected.FetchAll(context.Background(), "DC=one,DC=test", ldaphelpers.AllObjects, nil)
	assert.Error(t, err)
}

func TestDiscoverDomains(t *testing.T) {
	partitions := "CN=Partitions,CN=Configuration,DC=root,DC=test"
	dir := &fakeDirectory{pages: map[string][][]*ldap.Entry{
		searchKey(partitions, ldaphelpers.DomainCrossRefs().String()): {{
			ldap.NewEntry("CN=ROOT,"+partitions, map[string][]string{
				"nETBIOSName": {"ROOT"}, "dnsRoot": {"root.test"}, "nCName": {"DC=root,DC=test"},
			}),
			ldap.NewEntry("CN=CHILD,"+partitions, map[string][]string{
				"nETBIOSName": {"CHILD"}, "dnsRoot": {"child.root.test"}, "nCName": {"DC=child,DC=root,DC=test"},
			}),
			ldap.NewEntry("CN=BROKEN,"+partitions, map[string][]string{"nETBIOSName": {"BROKEN"}}),
		}},
	}}
	ad := newTestInstance(t, dir, "DC=root,DC=test")

	domains, err := ad.DiscoverDomains(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []Domain{
		{DNSName: "root.test", NetBIOSName: "ROOT", NamingContext: "DC=root,DC=test"},
		{DNSName: "child.root.test", NetBIOSName: "CHILD", NamingContext: "DC=child,DC=root,DC=test"},
	}, domains)

	domains, err = ad.DiscoverDomains(context.Background(), []string{" CHILD.root.test "})
	require.NoError(t, err)
	require.Len(t, domains, 1)
	assert.Equal(t, "CHILD", domains[0].NetBIOSName)

	_, err = ad.DiscoverDomains(context.Background(), []string{"other.test"})
	assert.ErrorIs(t, err, ErrNoDomains)
}

func userEntry(dn, sam string, extra map[string][]string) *ldap.Entry {
	attrs := map[string][]string{
		"sAMAccountName":     {sam},
		"objectClass":        {"top", "person", "organizationalPerson", "user"},
		"userAccountControl": {"512"},
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return ldap.NewEntry(dn, attrs)
}

func TestFetchForest_SkipsFailedDomain(t *testing.T) {
	one := Domain{DNSName: "one.test", NetBIOSName: "ONE", NamingContext: "DC=one,DC=test"}
	broken := Domain{DNSName: "broken.test", NetBIOSName: "BROKEN", NamingContext: "DC=broken,DC=test"}
	two := Domain{DNSName: "two.test", NetBIOSName: "TWO", NamingContext: "DC=two,DC=test"}

	dirs := map[string]*fakeDirectory{
		one.DNSName: {pages: map[string][][]*ldap.Entry{
			searchKey(one.NamingContext, ldaphelpers.AllUserObjects): {
				{userEntry("CN=A,DC=one,DC=test", "a", nil)},
				{userEntry("CN=B,DC=one,DC=test", "b", nil)},
			},
			searchKey(one.NamingContext, ldaphelpers.AllContactObjects): {{
				ldap.NewEntry("CN=Partner,DC=one,DC=test", map[string][]string{
					"objectClass": {"top", "person", "organizationalPerson", "contact"},
					"mail":        {"partner@external.test"},
				}),
			}},
		}},
		broken.DNSName: {err: errors.New("server down")},
		two.DNSName: {pages: map[string][][]*ldap.Entry{
			searchKey(two.NamingContext, ldaphelpers.AllUserObjects): {
				{userEntry("CN=C,DC=two,DC=test", "c", nil)},
			},
		}},
	}

	connect := func(ctx context.Context, d Domain) (*ActiveDirectoryInstance, error) {
		return newTestInstance(t, dirs[d.DNSName], d.NamingContext), nil
	}
	fetcher := NewFetcher(connect, []string{"extensionAttribute1", "MAIL"}, zaptest.NewLogger(t))

	in, err := fetcher.FetchForest(context.Background(), []Domain{one, broken, two})
	require.NoError(t, err)

	var dns []string
	for _, a := range in.Accounts {
		dns = append(dns, a.DistinguishedName)
	}
	assert.Equal(t, []string{"CN=A,DC=one,DC=test", "CN=B,DC=one,DC=test", "CN=C,DC=two,DC=test"}, dns)
	assert.Equal(t, "ONE", in.Accounts[0].NetBIOSDomain)
	assert.Equal(t, "TWO", in.Accounts[2].NetBIOSDomain)

	require.Len(t, in.Contacts, 1)
	assert.Equal(t, "contact", in.Contacts[0].ObjectClass)

	// extra attributes are requested once, case-insensitively deduplicated
	attrs := dirs[one.DNSName].requests[0].Attributes
	assert.Contains(t, attrs, "extensionAttribute1")
	assert.NotContains(t, attrs, "MAIL")
}

func TestFetchDomain_ConnectFailure(t *testing.T) {
	connect := func(ctx context.Context, d Domain) (*ActiveDirectoryInstance, error) {
		return nil, errors.New("bind failed")
	}
	fetcher := NewFetcher(connect, nil, zaptest.NewLogger(t))

	_, err := fetcher.FetchDomain(context.Background(), Domain{DNSName: "one.test"})

	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "one.test", domainErr.Domain)
	assert.ErrorContains(t, err, "bind failed")
}

func TestFetchForest_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := NewFetcher(func(context.Context, Domain) (*ActiveDirectoryInstance, error) {
		t.Fatal("connect should not be called")
		return nil, nil
	}, nil, zaptest.NewLogger(t))

	_, err := fetcher.FetchForest(ctx, []Domain{{DNSName: "one.test"}})
	assert.ErrorIs(t, err, context.Canceled)
}
