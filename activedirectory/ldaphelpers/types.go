package ldaphelpers

const (
	AllObjects        = "(objectClass=*)"
	AllUserObjects    = "(&(objectCategory=person)(objectClass=user))"
	AllContactObjects = "(objectClass=contact)"
)

// systemFlags on a crossRef: FLAG_CR_NTDS_DOMAIN
const crossRefDomainFlag = 0x2

// DomainCrossRefs selects the crossRef objects under the partitions container
// that describe domains of the forest.
func DomainCrossRefs() Filter {
	return And(
		Eq("objectClass", "crossRef"),
		Present("nETBIOSName"),
		BitAnd("systemFlags", crossRefDomainFlag),
	)
}
