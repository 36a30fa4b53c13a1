// Package resolver turns raw directory accounts and contacts into enriched
// password-expiry records: it builds the cross-domain identity cache, derives
// password expiry from the directory's FILETIME fields, follows manager
// references and classifies manager reachability.
package resolver

import (
	"strings"
)

// userAccountControl bits.
// https://learn.microsoft.com/en-us/troubleshoot/windows-server/active-directory/useraccountcontrol-manipulate-account-properties
const (
	UACAccountDisable      = 0x00000002
	UACPasswordNotRequired = 0x00000020
	UACInterdomainTrust    = 0x00000800
	UACDontExpirePassword  = 0x00010000

	// msDS-User-Account-Control-Computed
	UACPasswordExpired = 0x00800000
)

const (
	ObjectClassUser    = "user"
	ObjectClassContact = "contact"
)

// Object is anything stored in the IdentityCache.
type Object interface {
	DN() string
	Class() string

	// Get returns the first non-empty value of a directory attribute.
	Get(name string) (string, bool)

	// Values returns every value of a directory attribute.
	Values(name string) []string
}

// RawAccount is a user object as fetched from one domain.
type RawAccount struct {
	DistinguishedName string
	SamAccountName    string
	UserPrincipalName string
	DisplayName       string
	GivenName         string
	Surname           string
	Name              string
	Mail              string
	Manager           string
	Country           string
	ObjectClass       string
	MemberOf          []string

	UserAccountControl     uint32
	ComputedAccountControl uint32

	// Raw FILETIME strings, empty when the attribute was not returned.
	PwdLastSet                 string
	LastLogonTimestamp         string
	PasswordExpiryTimeComputed string

	HasMailbox    bool
	NetBIOSDomain string

	// Attributes holds every attribute returned for the entry, so that override
	// and extension attributes selected by name can be looked up.
	Attributes map[string][]string
}

func (a *RawAccount) DN() string    { return a.DistinguishedName }
func (a *RawAccount) Class() string { return a.ObjectClass }

func (a *RawAccount) Enabled() bool {
	return a.UserAccountControl&UACAccountDisable == 0
}

func (a *RawAccount) PasswordNeverExpires() bool {
	return a.UserAccountControl&UACDontExpirePassword != 0
}

func (a *RawAccount) PasswordNotRequired() bool {
	return a.UserAccountControl&UACPasswordNotRequired != 0
}

func (a *RawAccount) PasswordExpired() bool {
	return a.ComputedAccountControl&UACPasswordExpired != 0
}

// IsTrustAccount reports whether the object is the account another domain uses
// for an inter-domain trust rather than a person.
func (a *RawAccount) IsTrustAccount() bool {
	return a.UserAccountControl&UACInterdomainTrust != 0
}

func (a *RawAccount) Get(name string) (string, bool) {
	return first(a.Values(name))
}

func (a *RawAccount) Values(name string) []string {
	if accessor, ok := accountAccessors[strings.ToLower(name)]; ok {
		return accessor(a)
	}
	return bagValues(a.Attributes, name)
}

// RawContact is a contact object. Contacts have no password or enabled state
// and only appear as manager targets and report rows.
type RawContact struct {
	DistinguishedName string
	DisplayName       string
	Name              string
	Mail              string
	ObjectClass       string
	MemberOf          []string
	Attributes        map[string][]string
}

func (c *RawContact) DN() string { return c.DistinguishedName }

func (c *RawContact) Class() string {
	if c.ObjectClass == "" {
		return ObjectClassContact
	}
	return c.ObjectClass
}

func (c *RawContact) Get(name string) (string, bool) {
	return first(c.Values(name))
}

func (c *RawContact) Values(name string) []string {
	if accessor, ok := contactAccessors[strings.ToLower(name)]; ok {
		return accessor(c)
	}
	return bagValues(c.Attributes, name)
}

// static name -> field tables, keyed by lower-cased LDAP display name
var accountAccessors = map[string]func(*RawAccount) []string{
	"distinguishedname": func(a *RawAccount) []string { return single(a.DistinguishedName) },
	"samaccountname":    func(a *RawAccount) []string { return single(a.SamAccountName) },
	"userprincipalname": func(a *RawAccount) []string { return single(a.UserPrincipalName) },
	"displayname":       func(a *RawAccount) []string { return single(a.DisplayName) },
	"givenname":         func(a *RawAccount) []string { return single(a.GivenName) },
	"sn":                func(a *RawAccount) []string { return single(a.Surname) },
	"name":              func(a *RawAccount) []string { return single(a.Name) },
	"mail":              func(a *RawAccount) []string { return single(a.Mail) },
	"manager":           func(a *RawAccount) []string { return single(a.Manager) },
	"c":                 func(a *RawAccount) []string { return single(a.Country) },
	"memberof":          func(a *RawAccount) []string { return a.MemberOf },
}

var contactAccessors = map[string]func(*RawContact) []string{
	"distinguishedname": func(c *RawContact) []string { return single(c.DistinguishedName) },
	"displayname":       func(c *RawContact) []string { return single(c.DisplayName) },
	"name":              func(c *RawContact) []string { return single(c.Name) },
	"mail":              func(c *RawContact) []string { return single(c.Mail) },
	"memberof":          func(c *RawContact) []string { return c.MemberOf },
}

func single(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}

func first(values []string) (string, bool) {
	for _, v := range values {
		if v != "" {
			return v, true
		}
	}
	return "", false
}

// LDAP attribute names are case-insensitive
func bagValues(bag map[string][]string, name string) []string {
	if values, ok := bag[name]; ok {
		return values
	}
	for k, values := range bag {
		if strings.EqualFold(k, name) {
			return values
		}
	}
	return nil
}
