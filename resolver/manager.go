package resolver

import (
	"net/mail"
	"strings"
	"time"
)

type ManagerStatus string

const (
	ManagerMissing         ManagerStatus = "Missing"
	ManagerNotAvailable    ManagerStatus = "Not available"
	ManagerEnabled         ManagerStatus = "Enabled"
	ManagerEnabledBadEmail ManagerStatus = "Enabled, bad email"
	ManagerNoEmail         ManagerStatus = "No email"
	ManagerDisabled        ManagerStatus = "Disabled"
)

// ManagerOptions names the optional attributes that redirect manager and email lookups.
type ManagerOptions struct {
	OverrideEmailAttribute   string
	OverrideManagerAttribute string
}

// ManagerState describes the resolved manager of an account and whether it can be reached.
type ManagerState struct {
	DisplayName    string
	SamAccountName string
	Email          string
	Enabled        bool
	Status         ManagerStatus
	LastLogonDays  *int
	ObjectType     string
	DN             string
}

// ResolveManager follows the override manager attribute, then the manager
// reference, through the cache. A reference that cannot be found in the cache is
// treated the same as no reference.
func ResolveManager(account *RawAccount, cache *IdentityCache, opts ManagerOptions, now time.Time) ManagerState {
	target, ok := lookupManager(account, cache, opts.OverrideManagerAttribute)
	if !ok {
		status := ManagerNotAvailable
		if strings.EqualFold(account.ObjectClass, ObjectClassUser) {
			status = ManagerMissing
		}
		return ManagerState{Status: status}
	}

	state := ManagerState{
		DN:         target.DN(),
		ObjectType: target.Class(),
		Email:      EffectiveEmail(target, opts.OverrideEmailAttribute),
	}

	switch m := target.(type) {
	case *RawAccount:
		state.DisplayName = m.DisplayName
		state.SamAccountName = m.SamAccountName
		state.Enabled = m.Enabled()
		_, state.LastLogonDays = daysSince(m.LastLogonTimestamp, now)
		state.Status = classifyAccountManager(state.Enabled, state.Email)
	case *RawContact:
		state.DisplayName = m.DisplayName
		// contacts have no enabled flag and are always considered reachable
		state.Enabled = true
		state.Status = ManagerEnabled
	default:
		state.Status = ManagerDisabled
	}

	return state
}

func lookupManager(account *RawAccount, cache *IdentityCache, overrideAttribute string) (Object, bool) {
	if overrideAttribute != "" {
		if ref, ok := account.Get(overrideAttribute); ok {
			if target, found := cache.Get(ref); found {
				return target, true
			}
		}
	}
	if account.Manager != "" {
		return cache.Get(account.Manager)
	}
	return nil, false
}

func classifyAccountManager(enabled bool, email string) ManagerStatus {
	switch {
	case enabled && email != "" && ValidEmail(email):
		return ManagerEnabled
	case enabled && email != "":
		return ManagerEnabledBadEmail
	case enabled:
		return ManagerNoEmail
	default:
		return ManagerDisabled
	}
}

// EffectiveEmail returns the override email attribute when it is set and looks
// like an address, otherwise the object's mail attribute.
func EffectiveEmail(obj Object, overrideAttribute string) string {
	if overrideAttribute != "" {
		if v, ok := obj.Get(overrideAttribute); ok && strings.Contains(v, "@") {
			return v
		}
	}
	email, _ := obj.Get("mail")
	return email
}

// ValidEmail accepts a bare RFC 5322 address with no display name or comments.
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Name == "" && addr.Address == strings.TrimSpace(email)
}
