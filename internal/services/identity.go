package services

// Identity is the caller's scope for one request: an authenticated account
// (UID set) or an anonymous browser scope (AnonID set). Exactly one is set.
type Identity struct {
	UID    string
	AnonID string
}

// Authenticated reports whether the identity belongs to a signed-in account.
func (id Identity) Authenticated() bool {
	return id.UID != ""
}

// AccountIdentity returns an identity for a signed-in account.
func AccountIdentity(uid string) Identity {
	return Identity{UID: uid}
}

// AnonymousIdentity returns an identity for an anonymous browser scope.
func AnonymousIdentity(scopeID string) Identity {
	return Identity{AnonID: scopeID}
}
