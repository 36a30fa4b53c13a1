package activedirectory

import (
	"strconv"
	"strings"

	"f0oster/adexpiry/resolver"

	"github.com/go-ldap/ldap/v3"
)

// attributes requested for every account, before override and extension attributes
var accountAttributes = []string{
	"distinguishedName",
	"sAMAccountName",
	"userPrincipalName",
	"displayName",
	"givenName",
	"sn",
	"name",
	"mail",
	"manager",
	"c",
	"objectClass",
	"memberOf",
	"userAccountControl",
	"msDS-User-Account-Control-Computed",
	"pwdLastSet",
	"lastLogonTimestamp",
	"msDS-UserPasswordExpiryTimeComputed",
	"msExchMailboxGuid",
}

var contactAttributes = []string{
	"distinguishedName",
	"displayName",
	"name",
	"mail",
	"objectClass",
	"memberOf",
}

// withExtra appends names not already present, ignoring case.
func withExtra(base []string, extra ...string) []string {
	out := make([]string, len(base), len(base)+len(extra))
	copy(out, base)
	seen := make(map[string]bool, len(out))
	for _, name := range out {
		seen[strings.ToLower(name)] = true
	}
	for _, name := range extra {
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

// ParseAccount converts a user entry fetched from the domain with the given
// NetBIOS name.
func ParseAccount(entry *ldap.Entry, netBIOSDomain string) *resolver.RawAccount {
	return &resolver.RawAccount{
		DistinguishedName:          entryDN(entry),
		SamAccountName:             entry.GetAttributeValue("sAMAccountName"),
		UserPrincipalName:          entry.GetAttributeValue("userPrincipalName"),
		DisplayName:                entry.GetAttributeValue("displayName"),
		GivenName:                  entry.GetAttributeValue("givenName"),
		Surname:                    entry.GetAttributeValue("sn"),
		Name:                       entry.GetAttributeValue("name"),
		Mail:                       entry.GetAttributeValue("mail"),
		Manager:                    entry.GetAttributeValue("manager"),
		Country:                    entry.GetAttributeValue("c"),
		ObjectClass:                primaryObjectClass(entry),
		MemberOf:                   entry.GetAttributeValues("memberOf"),
		UserAccountControl:         parseFlags(entry.GetAttributeValue("userAccountControl")),
		ComputedAccountControl:     parseFlags(entry.GetAttributeValue("msDS-User-Account-Control-Computed")),
		PwdLastSet:                 entry.GetAttributeValue("pwdLastSet"),
		LastLogonTimestamp:         entry.GetAttributeValue("lastLogonTimestamp"),
		PasswordExpiryTimeComputed: entry.GetAttributeValue("msDS-UserPasswordExpiryTimeComputed"),
		HasMailbox:                 len(entry.GetRawAttributeValues("msExchMailboxGuid")) > 0,
		NetBIOSDomain:              netBIOSDomain,
		Attributes:                 attributeBag(entry),
	}
}

func ParseContact(entry *ldap.Entry) *resolver.RawContact {
	return &resolver.RawContact{
		DistinguishedName: entryDN(entry),
		DisplayName:       entry.GetAttributeValue("displayName"),
		Name:              entry.GetAttributeValue("name"),
		Mail:              entry.GetAttributeValue("mail"),
		ObjectClass:       primaryObjectClass(entry),
		MemberOf:          entry.GetAttributeValues("memberOf"),
		Attributes:        attributeBag(entry),
	}
}

func entryDN(entry *ldap.Entry) string {
	if entry.DN != "" {
		return entry.DN
	}
	return entry.GetAttributeValue("distinguishedName")
}

// objectClass is returned top-down, so the last value is the most specific class
func primaryObjectClass(entry *ldap.Entry) string {
	classes := entry.GetAttributeValues("objectClass")
	if len(classes) == 0 {
		return ""
	}
	return classes[len(classes)-1]
}

// userAccountControl is a signed 32-bit integer on the wire
func parseFlags(raw string) uint32 {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return uint32(v)
}

func attributeBag(entry *ldap.Entry) map[string][]string {
	bag := make(map[string][]string, len(entry.Attributes))
	for _, attr := range entry.Attributes {
		bag[attr.Name] = attr.Values
	}
	return bag
}
