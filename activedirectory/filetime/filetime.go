// Package filetime converts Active Directory large-integer timestamps
// (100-nanosecond intervals since 1601-01-01 UTC) to and from time.Time.
package filetime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// EpochOffset is the FILETIME value of the Unix epoch.
	EpochOffset = int64(116444736000000000)

	// Never is the largest representable FILETIME. accountExpires uses it to mean
	// "never", and msDS-UserPasswordExpiryTimeComputed returns it when the expiry
	// is decided by a fine-grained password policy or the password does not expire.
	Never = int64(9223372036854775807)

	// MaxValue is 9999-12-31T23:59:59.9999999Z, the largest FILETIME that maps to a
	// calendar date the directory tooling will render.
	MaxValue = int64(2650467743999999999)

	ticksPerSecond = int64(10000000)
)

var ErrOutOfRange = errors.New("filetime out of range")

// ToTime converts a FILETIME to UTC. Zero maps to the 1601 epoch floor.
func ToTime(ft int64) (time.Time, error) {
	if ft < 0 || ft > MaxValue {
		return time.Time{}, fmt.Errorf("%w: %d", ErrOutOfRange, ft)
	}

	// split before scaling, (ft-EpochOffset)*100 overflows int64 outside 1678..2262
	delta := ft - EpochOffset
	secs := delta / ticksPerSecond
	rem := delta % ticksPerSecond
	return time.Unix(secs, rem*100).UTC(), nil
}

// FromTime is the inverse of ToTime.
func FromTime(t time.Time) int64 {
	return t.Unix()*ticksPerSecond + int64(t.Nanosecond())/100 + EpochOffset
}

// ParseInt parses the decimal string form the directory returns.
func ParseInt(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid FILETIME integer %q: %w", s, err)
	}
	return v, nil
}

// Parse decodes a decimal FILETIME string into a time.
func Parse(s string) (time.Time, error) {
	ft, err := ParseInt(s)
	if err != nil {
		return time.Time{}, err
	}
	return ToTime(ft)
}

// ParseOptional decodes timestamps such as lastLogonTimestamp and pwdLastSet where
// an empty value, zero or Never all mean "not set".
func ParseOptional(s string) (*time.Time, error) {
	if s == "" || s == "0" {
		return nil, nil
	}

	ft, err := ParseInt(s)
	if err != nil {
		return nil, err
	}
	if ft == 0 || ft == Never {
		return nil, nil
	}

	t, err := ToTime(ft)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
