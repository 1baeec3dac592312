package entity

// IdentityClaim is what an external identity provider asserts about a user.
type IdentityClaim struct {
	UID           string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}
