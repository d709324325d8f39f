package domain

// User is the authenticated customer as seen by the storefront. Token is forwarded to the backend.
type User struct {
	ID    int64
	Token string
}
