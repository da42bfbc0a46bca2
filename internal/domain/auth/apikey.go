// Package auth holds the API key identity model used to authenticate and
// authorize requests. Keys are stored as HMAC-SHA256 hashes; password
// handling is outside this service.
package auth

import "context"

// Role is the permission level attached to an API key.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Identity is the resolved caller behind a validated API key.
type Identity struct {
	KeyID   int64
	KeyHash string
	Name    string
	UserID  int64
	Role    Role
}

// IsAdmin reports whether the identity carries the admin role.
func (id *Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

// CanAccessUser reports whether the identity may act on the given user's
// resources: admins may act on anyone, customers only on themselves.
func (id *Identity) CanAccessUser(userID int64) bool {
	return id.IsAdmin() || id.UserID == userID
}

// Repository provides lookup of API keys by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*Identity, error)
}
