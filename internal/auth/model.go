// Package auth handles user accounts, password security, session management,
// and session-gated access control for clubhouse. It provides signup, login,
// logout, and session validation via opaque tokens stored in Redis.
package auth

import (
	"time"
)

// User represents a registered clubhouse user. This is the domain model used
// throughout the application; the repository stores it as a MongoDB document.
type User struct {
	ID           string     `bson:"_id" json:"id"`
	Name         string     `bson:"name" json:"name"`
	Email        string     `bson:"email" json:"email"`
	PasswordHash string     `bson:"password_hash" json:"-"` // Never expose in responses.
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	LastLoginAt  *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
}

// --- Service Input DTOs (passed from handler to service) ---

// SignupInput is the validated input for creating a new user. It must come
// from validate.Signup; the service assumes shape and charset checks already
// ran.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput is the validated input for authenticating a user.
type LoginInput struct {
	Email    string
	Password string
}

// --- Session ---

// Session represents an authenticated user session stored in Redis.
// The session token is the key, and this struct is the value (JSON-encoded).
//
// ExpiresAt is fixed at issue time. The Redis key TTL enforces it passively;
// ValidateSession additionally checks it on read so a stale record is never
// trusted even if the key outlives its intended lifetime.
type Session struct {
	Authenticated bool      `json:"authenticated"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}
