package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/cdore/clubhouse/internal/apperror"
)

// sessionKeyPrefix is the Redis key prefix for session data.
const sessionKeyPrefix = "session:"

// sessionTokenBytes is the number of random bytes in a session token.
// 32 bytes = 256 bits of entropy, hex-encoded to 64 characters.
const sessionTokenBytes = 32

// bcryptCost is the bcrypt work factor for password hashing.
const bcryptCost = 12

// AuthService defines the business logic contract for authentication.
// Handlers call these methods -- they never touch the repository or the
// session store directly, and session state is mutated nowhere else.
type AuthService interface {
	Register(ctx context.Context, input SignupInput) (token string, user *User, err error)
	Login(ctx context.Context, input LoginInput) (token string, user *User, err error)
	ValidateSession(ctx context.Context, token string) (*Session, error)
	DestroySession(ctx context.Context, token string) error
	LookupByName(ctx context.Context, name string) ([]User, error)
}

// authService implements AuthService with bcrypt hashing and Redis sessions.
type authService struct {
	repo       UserRepository
	redis      *redis.Client
	sessionTTL time.Duration
}

// NewAuthService creates a new auth service with the given dependencies.
func NewAuthService(repo UserRepository, rdb *redis.Client, sessionTTL time.Duration) AuthService {
	return &authService{
		repo:       repo,
		redis:      rdb,
		sessionTTL: sessionTTL,
	}
}

// Register creates a new user account and issues a session for it. It
// rejects duplicate emails, hashes the password with bcrypt, persists the
// user, and only then touches the session store. The steps are strictly
// sequential: a record is never written with an unhashed password, and a
// session is never issued for a user that failed to persist.
func (s *authService) Register(ctx context.Context, input SignupInput) (string, *User, error) {
	// Check if email is already taken before doing expensive hashing. The
	// unique index on email backstops this check under concurrent signups.
	exists, err := s.repo.EmailExists(ctx, normalizeEmail(input.Email))
	if err != nil {
		return "", nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}
	if exists {
		return "", nil, apperror.NewConflict("an account with this email already exists")
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return "", nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	user := &User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(input.Name),
		Email:        normalizeEmail(input.Email),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if appErr, ok := err.(*apperror.AppError); ok {
			return "", nil, appErr
		}
		return "", nil, apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	token, err := s.issueSession(ctx, user)
	if err != nil {
		return "", nil, apperror.NewInternal(fmt.Errorf("issuing session: %w", err))
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return token, user, nil
}

// Login authenticates a user by email and password. On success it issues a
// new session and returns the token for the cookie.
//
// Unknown email and wrong password both return the same unauthorized error:
// the client must not be able to tell which one happened. The distinction is
// logged server-side only.
func (s *authService) Login(ctx context.Context, input LoginInput) (string, *User, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if appErr, ok := err.(*apperror.AppError); ok && appErr.Code == 404 {
			slog.Debug("login failed: unknown email")
			return "", nil, apperror.NewUnauthorized("invalid email or password")
		}
		return "", nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if !verifyPassword(input.Password, user.PasswordHash) {
		slog.Debug("login failed: wrong password", slog.String("user_id", user.ID))
		return "", nil, apperror.NewUnauthorized("invalid email or password")
	}

	token, err := s.issueSession(ctx, user)
	if err != nil {
		return "", nil, apperror.NewInternal(fmt.Errorf("issuing session: %w", err))
	}

	// Update the user's last login timestamp (fire-and-forget, non-critical).
	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("failed to update last login",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return token, user, nil
}

// ValidateSession looks up a session token in Redis and returns the session
// data if it exists and hasn't expired. Expiration is fixed-from-issue:
// a valid read does not extend the session. A record past its expiry is
// destroyed and treated as anonymous even if Redis hasn't reaped it yet.
func (s *authService) ValidateSession(ctx context.Context, token string) (*Session, error) {
	key := sessionKeyPrefix + token

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, apperror.NewUnauthorized("session expired or invalid")
	}
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("reading session from redis: %w", err))
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("unmarshaling session: %w", err))
	}

	if !session.Authenticated || !time.Now().Before(session.ExpiresAt) {
		_ = s.redis.Del(ctx, key).Err()
		return nil, apperror.NewUnauthorized("session expired or invalid")
	}

	return &session, nil
}

// DestroySession removes a session from Redis, effectively logging the user
// out. Destroying a token that no longer exists is not an error.
func (s *authService) DestroySession(ctx context.Context, token string) error {
	key := sessionKeyPrefix + token

	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return apperror.NewInternal(fmt.Errorf("deleting session from redis: %w", err))
	}

	return nil
}

// LookupByName returns the users matching a validated name. Used by the
// injection probe endpoint; callers are responsible for validating name
// before this is called.
func (s *authService) LookupByName(ctx context.Context, name string) ([]User, error) {
	users, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("looking up users by name: %w", err))
	}
	return users, nil
}

// issueSession generates a random session token, stores the session data in
// Redis with the configured TTL, and returns the token.
func (s *authService) issueSession(ctx context.Context, user *User) (string, error) {
	token, err := generateSessionToken()
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}

	now := time.Now().UTC()
	session := Session{
		Authenticated: true,
		Name:          user.Name,
		Email:         user.Email,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.sessionTTL),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("marshaling session: %w", err)
	}

	key := sessionKeyPrefix + token
	if err := s.redis.Set(ctx, key, data, s.sessionTTL).Err(); err != nil {
		return "", fmt.Errorf("storing session in redis: %w", err)
	}

	return token, nil
}

// --- Password Hashing (bcrypt) ---

// hashPassword creates a salted bcrypt hash of the given password. The salt
// is embedded in the output, so verification needs no separate salt storage.
// The plaintext is never logged or persisted.
func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("generating bcrypt hash: %w", err)
	}
	return string(hash), nil
}

// verifyPassword checks a plaintext password against a stored bcrypt hash.
// A mismatch is not an error, just a "no match" -- the caller routes it to
// the generic invalid-credentials path.
func verifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// --- Helpers ---

// generateSessionToken creates a cryptographically random hex-encoded token.
func generateSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// normalizeEmail lowercases and trims an email so lookups and the unique
// index agree on a canonical form.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
