package session

// Identity is the logged-in user as reported by the backend. It is supplied
// once before the channel is opened and never mutated by the core.
type Identity struct {
	UserID      int64
	DisplayName string
}

// Valid reports whether the identity carries a real user id.
func (i Identity) Valid() bool {
	return i.UserID > 0
}
