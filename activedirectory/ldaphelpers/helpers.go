package ldaphelpers

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// LDAP_MATCHING_RULE_BIT_AND
// https://learn.microsoft.com/en-us/windows/win32/adsi/search-filter-syntax
const matchingRuleBitAnd = "1.2.840.113556.1.4.803"

type Filter interface {
	String() string
}

type rawFilter string

func (f rawFilter) String() string {
	return string(f)
}

// Raw wraps an already formed filter string.
func Raw(filter string) Filter {
	return rawFilter(filter)
}

// Logical operators
type andFilter struct {
	parts []Filter
}

func And(filters ...Filter) Filter {
	return andFilter{parts: filters}
}
func (f andFilter) String() string {
	return "(&" + join(f.parts) + ")"
}

type orFilter struct {
	parts []Filter
}

func Or(filters ...Filter) Filter {
	return orFilter{parts: filters}
}
func (f orFilter) String() string {
	return "(|" + join(f.parts) + ")"
}

type notFilter struct {
	part Filter
}

func Not(f Filter) Filter {
	return notFilter{part: f}
}
func (f notFilter) String() string {
	return "(!" + f.part.String() + ")"
}

type geFilter struct {
	attr  string
	value int64
}

func (f geFilter) String() string {
	return fmt.Sprintf("(%s>=%d)", f.attr, f.value)
}

func Ge(attr string, value int64) Filter {
	return geFilter{attr: attr, value: value}
}

type bitAndFilter struct {
	attr string
	mask uint32
}

func (f bitAndFilter) String() string {
	return fmt.Sprintf("(%s:%s:=%d)", f.attr, matchingRuleBitAnd, f.mask)
}

// BitAnd matches entries where every bit of mask is set in the integer attribute.
func BitAnd(attr string, mask uint32) Filter {
	return bitAndFilter{attr: attr, mask: mask}
}

// Eq matches attr against value. The value is escaped, so it cannot contain
// wildcards; use Present for existence checks.
func Eq(attr, value string) Filter {
	return rawFilter("(" + attr + "=" + ldap.EscapeFilter(value) + ")")
}

func Present(attr string) Filter {
	return rawFilter("(" + attr + "=*)")
}

func join(filters []Filter) string {
	var b strings.Builder
	for _, f := range filters {
		b.WriteString(f.String())
	}
	return b.String()
}
