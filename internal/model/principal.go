package model

// Principal is the identity the authentication layer established for a single request.
// Email is the principal name; Authorities are the granted authority strings.
type Principal struct {
	Email       string
	Authorities []string
}

// HasAuthority reports whether the exact authority string was granted.
func (p Principal) HasAuthority(authority string) bool {
	for _, a := range p.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}
