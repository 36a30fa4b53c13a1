package commands

import (
	"bytes"
	"encoding/json"
	"testing"

	"f0oster/adexpiry/config"
	"f0oster/adexpiry/resolver"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sampleOutput(t *testing.T) *resolver.OutputMap {
	t.Helper()
	in := resolver.Input{
		Accounts: []*resolver.RawAccount{
			{DistinguishedName: "CN=B,DC=example,DC=com", SamAccountName: "b", ObjectClass: "user", UserAccountControl: 0x200},
			{DistinguishedName: "CN=A,DC=example,DC=com", SamAccountName: "a", ObjectClass: "user", UserAccountControl: 0x200},
		},
	}
	return resolver.New(resolver.Options{IncludeContacts: true}, zaptest.NewLogger(t)).Resolve(in)
}

func TestWriteOutput_KeyedMapKeepsOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOutput(&buf, sampleOutput(t), false))

	out := buf.String()
	b := bytes.Index(buf.Bytes(), []byte(`"CN=B,DC=example,DC=com"`))
	a := bytes.Index(buf.Bytes(), []byte(`"CN=A,DC=example,DC=com"`))
	require.NotEqual(t, -1, a, out)
	assert.Less(t, b, a)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded, 2)
}

func TestWriteOutput_List(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOutput(&buf, sampleOutput(t), true))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "b", decoded[0]["sam_account_name"])
}

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "resolve"}
	cmd.Flags().String("key-field", "", "")
	cmd.Flags().Bool("include-contacts", true, "")
	cmd.Flags().StringSlice("domains", nil, "")
	return cmd
}

func TestApplyFlagOverrides(t *testing.T) {
	cmd := newFlagCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--key-field", "UserPrincipalName", "--domains", "a.example.com,b.example.com"}))

	c := config.Configuration{KeyField: "SamAccountName", IncludeContacts: false, Domains: []string{"c.example.com"}}
	require.NoError(t, applyFlagOverrides(cmd, &c))

	assert.Equal(t, "UserPrincipalName", c.KeyField)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, c.Domains)
	assert.False(t, c.IncludeContacts, "unset flags leave the env value alone")
}

func TestApplyFlagOverrides_IncludeContacts(t *testing.T) {
	cmd := newFlagCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--include-contacts=false"}))

	c := config.Configuration{IncludeContacts: true}
	require.NoError(t, applyFlagOverrides(cmd, &c))
	assert.False(t, c.IncludeContacts)
}
