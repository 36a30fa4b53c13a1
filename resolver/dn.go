package resolver

import (
	"strings"

	"github.com/go-ldap/ldap/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const unknownCountry = "Unknown"

// DomainFromDN joins the DC components of a DN, e.g. "ad.example.com".
func DomainFromDN(dn string) string {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return ""
	}

	var labels []string
	for _, rdn := range parsed.RDNs {
		for _, attr := range rdn.Attributes {
			if strings.EqualFold(attr.Type, "DC") {
				labels = append(labels, attr.Value)
			}
		}
	}
	return strings.Join(labels, ".")
}

// OrganizationalUnitFromDN returns the DN of the container holding the object.
func OrganizationalUnitFromDN(dn string) string {
	parsed, err := ldap.ParseDN(dn)
	if err != nil || len(parsed.RDNs) < 2 {
		return ""
	}

	// slice the original string so escaping is preserved as the directory wrote it
	escaped := false
	for i, r := range dn {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == ',':
			return strings.TrimSpace(dn[i+1:])
		}
	}
	return ""
}

// CountryName maps an ISO 3166 country code (the directory's "c" attribute) to an
// English country name. Absent or unrecognised codes map to Unknown/Unknown.
func CountryName(code string) (name string, normalizedCode string) {
	code = strings.TrimSpace(code)
	if code == "" {
		return unknownCountry, unknownCountry
	}

	region, err := language.ParseRegion(code)
	if err != nil || !region.IsCountry() {
		return unknownCountry, unknownCountry
	}

	name = display.English.Regions().Name(region)
	if name == "" {
		return unknownCountry, unknownCountry
	}
	return name, strings.ToUpper(code)
}
