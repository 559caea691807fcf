package domain

import "strings"

// Address is a derived on-chain account identifier, rendered as 0x-prefixed
// lowercase hex. It is a pure function of (issuer, audience, key claim,
// salt); the raw OAuth subject never appears on-chain.
type Address string

// Valid reports whether a looks like a derived address.
func (a Address) Valid() bool {
	s := string(a)
	if !strings.HasPrefix(s, "0x") || len(s) != 66 {
		return false
	}
	for _, c := range s[2:] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func (a Address) String() string { return string(a) }
