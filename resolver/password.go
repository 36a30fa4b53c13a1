package resolver

import (
	"encoding/json"
	"strings"
	"time"

	"f0oster/adexpiry/activedirectory/filetime"
)

// ExpiryDate is either a decoded expiry time or, when the directory value could
// not be decoded, the raw value exactly as the directory returned it.
type ExpiryDate struct {
	Time *time.Time
	Raw  string
}

// Decoded reports whether the expiry holds a real date.
func (e ExpiryDate) Decoded() bool {
	return e.Time != nil
}

func (e ExpiryDate) MarshalJSON() ([]byte, error) {
	if e.Time != nil {
		return json.Marshal(e.Time.Format(time.RFC3339))
	}
	return json.Marshal(e.Raw)
}

// PasswordState is the password timing derived for one account.
type PasswordState struct {
	// ExpiryDate and DaysToExpire are computed independently. When the expiry
	// cannot be decoded ExpiryDate carries the raw value and DaysToExpire is nil.
	ExpiryDate     *ExpiryDate
	DaysToExpire   *int
	NeverExpires   bool
	SetAtNextLogon bool
	LastSet        *time.Time
	DaysSinceSet   *int
}

// ResolvePasswordState derives expiry timing from pwdLastSet,
// msDS-UserPasswordExpiryTimeComputed and the account's userAccountControl flags.
func ResolvePasswordState(account *RawAccount, now time.Time) PasswordState {
	var state PasswordState

	raw := strings.TrimSpace(account.PasswordExpiryTimeComputed)
	if isFineGrainedSentinel(raw) {
		// the directory defers to a fine-grained password policy; the
		// never-expires flag on the account can't be trusted here
		state.NeverExpires = true
	} else {
		if raw != "" {
			expiry := decodeExpiry(raw)
			state.ExpiryDate = &expiry
			if expiry.Time != nil {
				days := wholeDays(now, *expiry.Time)
				state.DaysToExpire = &days
			}
		}
		state.NeverExpires = account.PasswordNeverExpires()
	}

	pwdLastSet, pwdLastSetKnown := parseRawInt(account.PwdLastSet)
	if pwdLastSetKnown && pwdLastSet == 0 && state.ExpiryDate != nil &&
		state.ExpiryDate.Time != nil && state.ExpiryDate.Time.Year() == 1601 {
		state.SetAtNextLogon = true
	}

	state.LastSet, state.DaysSinceSet = daysSince(account.PwdLastSet, now)

	if state.NeverExpires || state.LastSet == nil {
		state.ExpiryDate = nil
		state.DaysToExpire = nil
	}

	return state
}

func isFineGrainedSentinel(raw string) bool {
	v, ok := parseRawInt(raw)
	return ok && v == filetime.Never
}

func decodeExpiry(raw string) ExpiryDate {
	t, err := filetime.Parse(raw)
	if err != nil {
		return ExpiryDate{Raw: raw}
	}
	return ExpiryDate{Time: &t}
}

func parseRawInt(raw string) (int64, bool) {
	if strings.TrimSpace(raw) == "" {
		return 0, false
	}
	v, err := filetime.ParseInt(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// wholeDays counts whole days from start to end, truncated toward zero. It works
// on Unix seconds because time.Duration cannot span the 1601 epoch floor; the
// sub-second remainder only moves the seconds count toward zero.
func wholeDays(start, end time.Time) int {
	secs := end.Unix() - start.Unix()
	nanos := end.Nanosecond() - start.Nanosecond()
	switch {
	case secs > 0 && nanos < 0:
		secs--
	case secs < 0 && nanos > 0:
		secs++
	}
	return int(secs / 86400)
}

// daysSince returns the whole days between a FILETIME attribute and now, or nil
// when the attribute is unset or unreadable.
func daysSince(raw string, now time.Time) (*time.Time, *int) {
	t, err := filetime.ParseOptional(strings.TrimSpace(raw))
	if err != nil || t == nil {
		return nil, nil
	}
	days := wholeDays(*t, now)
	return t, &days
}
