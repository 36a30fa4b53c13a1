package resolver_test

import (
	"strconv"
	"testing"
	"time"

	"f0oster/adexpiry/activedirectory/filetime"
	"f0oster/adexpiry/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

const (
	uacNormal        = 0x200
	sentinel         = "9223372036854775807"
	futureExpiry     = "132900000000000000" // 2022-02-22 10:40 UTC
	futureExpiryDays = 52
)

func ft(t time.Time) string {
	return strconv.FormatInt(filetime.FromTime(t), 10)
}

func passwordAccount(uac uint32, pwdLastSet, expiry string) *resolver.RawAccount {
	return &resolver.RawAccount{
		DistinguishedName:          "CN=Test,OU=Users,DC=ad,DC=example,DC=com",
		SamAccountName:             "test",
		ObjectClass:                "user",
		UserAccountControl:         uac,
		PwdLastSet:                 pwdLastSet,
		PasswordExpiryTimeComputed: expiry,
	}
}

func TestResolvePasswordState_FutureExpiry(t *testing.T) {
	lastSet := time.Date(2021, 11, 24, 10, 40, 0, 0, time.UTC)
	state := resolver.ResolvePasswordState(passwordAccount(uacNormal, ft(lastSet), futureExpiry), testNow)

	require.NotNil(t, state.ExpiryDate)
	require.True(t, state.ExpiryDate.Decoded())
	assert.True(t, time.Date(2022, 2, 22, 10, 40, 0, 0, time.UTC).Equal(*state.ExpiryDate.Time))
	require.NotNil(t, state.DaysToExpire)
	assert.Equal(t, futureExpiryDays, *state.DaysToExpire)
	assert.Greater(t, *state.DaysToExpire, 0)
	assert.False(t, state.NeverExpires)
	assert.False(t, state.SetAtNextLogon)

	require.NotNil(t, state.LastSet)
	assert.True(t, lastSet.Equal(*state.LastSet))
	require.NotNil(t, state.DaysSinceSet)
	assert.Equal(t, 37, *state.DaysSinceSet)
}

func TestResolvePasswordState_FineGrainedSentinel(t *testing.T) {
	lastSet := ft(time.Date(2021, 12, 1, 0, 0, 0, 0, time.UTC))

	for _, uac := range []uint32{uacNormal, uacNormal | resolver.UACDontExpirePassword} {
		state := resolver.ResolvePasswordState(passwordAccount(uac, lastSet, sentinel), testNow)

		assert.True(t, state.NeverExpires, "uac=%#x", uac)
		assert.Nil(t, state.ExpiryDate, "uac=%#x", uac)
		assert.Nil(t, state.DaysToExpire, "uac=%#x", uac)
		assert.NotNil(t, state.LastSet, "pwdLastSet is still reported")
	}
}

func TestResolvePasswordState_NeverExpiresFlagClearsExpiry(t *testing.T) {
	lastSet := ft(time.Date(2021, 12, 1, 0, 0, 0, 0, time.UTC))
	state := resolver.ResolvePasswordState(
		passwordAccount(uacNormal|resolver.UACDontExpirePassword, lastSet, futureExpiry), testNow)

	assert.True(t, state.NeverExpires)
	assert.Nil(t, state.ExpiryDate)
	assert.Nil(t, state.DaysToExpire)
}

func TestResolvePasswordState_NoPasswordLastSetClearsExpiry(t *testing.T) {
	for _, pwdLastSet := range []string{"", "0"} {
		state := resolver.ResolvePasswordState(passwordAccount(uacNormal, pwdLastSet, futureExpiry), testNow)

		assert.Nil(t, state.ExpiryDate, "pwdLastSet=%q", pwdLastSet)
		assert.Nil(t, state.DaysToExpire, "pwdLastSet=%q", pwdLastSet)
		assert.Nil(t, state.LastSet, "pwdLastSet=%q", pwdLastSet)
		assert.Nil(t, state.DaysSinceSet, "pwdLastSet=%q", pwdLastSet)
	}
}

func TestResolvePasswordState_SetAtNextLogon(t *testing.T) {
	realLastSet := ft(time.Date(2021, 12, 1, 0, 0, 0, 0, time.UTC))

	tests := []struct {
		name       string
		pwdLastSet string
		expiry     string
		want       bool
	}{
		{"zero last set and epoch floor expiry", "0", "0", true},
		{"zero last set and real expiry", "0", futureExpiry, false},
		{"real last set and epoch floor expiry", realLastSet, "0", false},
		{"absent last set and epoch floor expiry", "", "0", false},
		{"zero last set and sentinel", "0", sentinel, false},
		{"zero last set and malformed expiry", "0", "bogus", false},
		{"zero last set and no expiry attribute", "0", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := resolver.ResolvePasswordState(passwordAccount(uacNormal, tt.pwdLastSet, tt.expiry), testNow)
			assert.Equal(t, tt.want, state.SetAtNextLogon)
		})
	}
}

func TestResolvePasswordState_EpochFloorExpiryIsKept(t *testing.T) {
	realLastSet := ft(time.Date(2021, 12, 1, 0, 0, 0, 0, time.UTC))
	state := resolver.ResolvePasswordState(passwordAccount(uacNormal, realLastSet, "0"), testNow)

	require.NotNil(t, state.ExpiryDate)
	require.True(t, state.ExpiryDate.Decoded())
	assert.Equal(t, 1601, state.ExpiryDate.Time.Year())
	require.NotNil(t, state.DaysToExpire)
	assert.Less(t, *state.DaysToExpire, 0)
}

// A value that cannot be decoded keeps the raw text as the expiry while the day
// count stays unset. The two fields are not guaranteed to agree.
func TestResolvePasswordState_UndecodableExpiryDiverges(t *testing.T) {
	realLastSet := ft(time.Date(2021, 12, 1, 0, 0, 0, 0, time.UTC))

	for _, raw := range []string{"bogus", "-5", "2650467744000000000"} {
		state := resolver.ResolvePasswordState(passwordAccount(uacNormal, realLastSet, raw), testNow)

		require.NotNil(t, state.ExpiryDate, "raw=%q", raw)
		assert.False(t, state.ExpiryDate.Decoded(), "raw=%q", raw)
		assert.Equal(t, raw, state.ExpiryDate.Raw)
		assert.Nil(t, state.DaysToExpire, "raw=%q", raw)
		assert.False(t, state.NeverExpires)
	}
}

func TestResolvePasswordState_MissingExpiryAttribute(t *testing.T) {
	realLastSet := ft(time.Date(2021, 12, 1, 0, 0, 0, 0, time.UTC))
	state := resolver.ResolvePasswordState(passwordAccount(uacNormal, realLastSet, ""), testNow)

	assert.Nil(t, state.ExpiryDate)
	assert.Nil(t, state.DaysToExpire)
	assert.False(t, state.NeverExpires)
}

func TestExpiryDate_MarshalJSON(t *testing.T) {
	tm := time.Date(2022, 2, 22, 10, 40, 0, 0, time.UTC)

	b, err := resolver.ExpiryDate{Time: &tm}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"2022-02-22T10:40:00Z"`, string(b))

	b, err = resolver.ExpiryDate{Raw: "bogus"}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"bogus"`, string(b))
}

func TestResolvePasswordState_SubSecondDayBoundary(t *testing.T) {
	now := testNow.Add(600 * time.Millisecond)
	lastSet := now.Add(-(24*time.Hour - 500*time.Millisecond))
	expiry := now.Add(24*time.Hour - 500*time.Millisecond)

	state := resolver.ResolvePasswordState(passwordAccount(uacNormal, ft(lastSet), ft(expiry)), now)

	require.NotNil(t, state.DaysToExpire)
	assert.Equal(t, 0, *state.DaysToExpire, "23h59m59.5s is not a whole day")
	require.NotNil(t, state.DaysSinceSet)
	assert.Equal(t, 0, *state.DaysSinceSet)

	state = resolver.ResolvePasswordState(passwordAccount(uacNormal, ft(lastSet), ft(now.Add(24*time.Hour))), now)
	require.NotNil(t, state.DaysToExpire)
	assert.Equal(t, 1, *state.DaysToExpire)
}

func TestResolveManager_LastLogonSubSecondBoundary(t *testing.T) {
	now := testNow.Add(600 * time.Millisecond)
	boss := passwordAccount(uacNormal, "", "")
	boss.LastLogonTimestamp = ft(now.Add(-(24*time.Hour - 500*time.Millisecond)))
	report := passwordAccount(uacNormal, "", "")
	report.DistinguishedName = "CN=Report,OU=Users,DC=ad,DC=example,DC=com"
	report.SamAccountName = "report"
	report.Manager = boss.DistinguishedName

	cache := resolver.BuildIdentityCache([]*resolver.RawAccount{boss, report}, nil)
	state := resolver.ResolveManager(report, cache, resolver.ManagerOptions{}, now)

	require.NotNil(t, state.LastLogonDays)
	assert.Equal(t, 0, *state.LastLogonDays)
}
