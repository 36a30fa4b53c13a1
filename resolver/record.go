package resolver

import (
	"fmt"
	"strings"
	"time"
)

type RecordType string

const (
	RecordTypeUser    RecordType = "User"
	RecordTypeContact RecordType = "Contact"
)

// ResolvedRecord is the enriched view of one account or contact handed to the
// rule-matching stage. Pointer fields are nil when the value is unset.
type ResolvedRecord struct {
	UserPrincipalName  string     `json:"user_principal_name"`
	SamAccountName     string     `json:"sam_account_name"`
	Domain             string     `json:"domain"`
	DistinguishedName  string     `json:"distinguished_name"`
	OrganizationalUnit string     `json:"organizational_unit"`
	Type               RecordType `json:"type"`
	DisplayName        string     `json:"display_name"`
	GivenName          string     `json:"given_name"`
	Surname            string     `json:"surname"`
	Enabled            bool       `json:"enabled"`

	PasswordExpired      bool        `json:"password_expired"`
	PasswordNeverExpires bool        `json:"password_never_expires"`
	PasswordNotRequired  bool        `json:"password_not_required"`
	PasswordAtNextLogon  bool        `json:"password_at_next_logon"`
	PasswordLastSet      *time.Time  `json:"password_last_set"`
	PasswordDays         *int        `json:"password_days"`
	DaysToExpire         *int        `json:"days_to_expire"`
	DateExpiry           *ExpiryDate `json:"date_expiry"`

	LastLogonDate *time.Time `json:"last_logon_date"`
	LastLogonDays *int       `json:"last_logon_days"`

	Manager               string        `json:"manager"`
	ManagerSamAccountName string        `json:"manager_sam_account_name"`
	ManagerEmail          string        `json:"manager_email"`
	ManagerStatus         ManagerStatus `json:"manager_status"`
	ManagerLastLogonDays  *int          `json:"manager_last_logon_days"`
	ManagerType           string        `json:"manager_type"`
	ManagerDN             string        `json:"manager_dn"`

	EmailAddress string   `json:"email_address"`
	HasMailbox   bool     `json:"has_mailbox"`
	Country      string   `json:"country"`
	CountryCode  string   `json:"country_code"`
	MemberOf     []string `json:"member_of"`

	// Extensions holds caller-declared attributes copied verbatim from the raw object.
	Extensions map[string][]string `json:"extensions,omitempty"`
}

// KeyField selects which identity the output map is keyed on.
type KeyField string

const (
	KeyDistinguishedName     KeyField = "DistinguishedName"
	KeySamAccountName        KeyField = "SamAccountName"
	KeyUserPrincipalName     KeyField = "UserPrincipalName"
	KeyEmailAddress          KeyField = "EmailAddress"
	KeyNetBiosSamAccountName KeyField = "NetBiosSamAccountName"
)

var keyFields = []KeyField{
	KeyDistinguishedName,
	KeySamAccountName,
	KeyUserPrincipalName,
	KeyEmailAddress,
	KeyNetBiosSamAccountName,
}

// ParseKeyField matches a key field name case-insensitively. An empty name
// selects the distinguished name.
func ParseKeyField(name string) (KeyField, error) {
	if strings.TrimSpace(name) == "" {
		return KeyDistinguishedName, nil
	}
	for _, f := range keyFields {
		if strings.EqualFold(string(f), strings.TrimSpace(name)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown key field %q", name)
}

// BuildOptions controls record assembly.
type BuildOptions struct {
	ManagerOptions
	ExtensionAttributes []string
}

// BuildUserRecord assembles the record for an account from its resolved
// password and manager state.
func BuildUserRecord(account *RawAccount, password PasswordState, manager ManagerState, opts BuildOptions, now time.Time) ResolvedRecord {
	country, countryCode := CountryName(account.Country)
	lastLogon, lastLogonDays := daysSince(account.LastLogonTimestamp, now)

	return ResolvedRecord{
		UserPrincipalName:  account.UserPrincipalName,
		SamAccountName:     account.SamAccountName,
		Domain:             DomainFromDN(account.DistinguishedName),
		DistinguishedName:  account.DistinguishedName,
		OrganizationalUnit: OrganizationalUnitFromDN(account.DistinguishedName),
		Type:               RecordTypeUser,
		DisplayName:        account.DisplayName,
		GivenName:          account.GivenName,
		Surname:            account.Surname,
		Enabled:            account.Enabled(),

		PasswordExpired:      account.PasswordExpired(),
		PasswordNeverExpires: password.NeverExpires,
		PasswordNotRequired:  account.PasswordNotRequired(),
		PasswordAtNextLogon:  password.SetAtNextLogon,
		PasswordLastSet:      password.LastSet,
		PasswordDays:         password.DaysSinceSet,
		DaysToExpire:         password.DaysToExpire,
		DateExpiry:           password.ExpiryDate,

		LastLogonDate: lastLogon,
		LastLogonDays: lastLogonDays,

		Manager:               manager.DisplayName,
		ManagerSamAccountName: manager.SamAccountName,
		ManagerEmail:          manager.Email,
		ManagerStatus:         manager.Status,
		ManagerLastLogonDays:  manager.LastLogonDays,
		ManagerType:           manager.ObjectType,
		ManagerDN:             manager.DN,

		EmailAddress: EffectiveEmail(account, opts.OverrideEmailAttribute),
		HasMailbox:   account.HasMailbox,
		Country:      country,
		CountryCode:  countryCode,
		MemberOf:     account.MemberOf,
		Extensions:   copyExtensions(account, opts.ExtensionAttributes),
	}
}

// BuildContactRecord produces the reduced record for a contact: no password,
// manager or activity state, always enabled.
func BuildContactRecord(contact *RawContact, opts BuildOptions) ResolvedRecord {
	return ResolvedRecord{
		Domain:             DomainFromDN(contact.DistinguishedName),
		DistinguishedName:  contact.DistinguishedName,
		OrganizationalUnit: OrganizationalUnitFromDN(contact.DistinguishedName),
		Type:               RecordTypeContact,
		DisplayName:        contact.DisplayName,
		Enabled:            true,
		EmailAddress:       contact.Mail,
		Country:            unknownCountry,
		CountryCode:        unknownCountry,
		MemberOf:           contact.MemberOf,
		Extensions:         copyExtensions(contact, opts.ExtensionAttributes),
	}
}

func copyExtensions(obj Object, names []string) map[string][]string {
	if len(names) == 0 {
		return nil
	}
	extensions := make(map[string][]string, len(names))
	for _, name := range names {
		values := obj.Values(name)
		copied := make([]string, len(values))
		copy(copied, values)
		extensions[name] = copied
	}
	return extensions
}

// accountKey returns the output key for an account record.
func accountKey(field KeyField, account *RawAccount, record *ResolvedRecord) string {
	switch field {
	case KeySamAccountName:
		return record.SamAccountName
	case KeyUserPrincipalName:
		return record.UserPrincipalName
	case KeyEmailAddress:
		return record.EmailAddress
	case KeyNetBiosSamAccountName:
		if account.NetBIOSDomain == "" || account.SamAccountName == "" {
			return ""
		}
		return account.NetBIOSDomain + `\` + account.SamAccountName
	default:
		return record.DistinguishedName
	}
}

// contactKey returns the output key for a contact record; ok is false when the
// key field has no meaning for contacts.
func contactKey(field KeyField, record *ResolvedRecord) (string, bool) {
	switch field {
	case KeyNetBiosSamAccountName:
		return "", false
	case KeySamAccountName:
		return record.SamAccountName, true
	case KeyUserPrincipalName:
		return record.UserPrincipalName, true
	case KeyEmailAddress:
		return record.EmailAddress, true
	default:
		return record.DistinguishedName, true
	}
}
