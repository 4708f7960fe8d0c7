package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/cdore/clubhouse/internal/apperror"
)

// UserRepository defines the data access contract for user operations.
// All MongoDB filter construction lives in the concrete implementation --
// no bson leaks out, and no filter is ever built from unvalidated input.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByName(ctx context.Context, name string) ([]User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdateLastLogin(ctx context.Context, id string) error
}

// userRepository implements UserRepository against the users collection.
// Every round trip is bounded by the configured timeout so an unreachable
// database surfaces as an infrastructure error instead of a hung request.
type userRepository struct {
	users   *mongo.Collection
	timeout time.Duration
}

// NewUserRepository creates a new user repository backed by the given
// MongoDB client and database name.
func NewUserRepository(client *mongo.Client, dbName string, timeout time.Duration) UserRepository {
	return &userRepository{
		users:   client.Database(dbName).Collection("users"),
		timeout: timeout,
	}
}

// Create inserts a new user document. A duplicate email trips the unique
// index and is reported as a conflict, which closes the race between two
// concurrent signups with the same address.
func (r *userRepository) Create(ctx context.Context, user *User) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.users.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return apperror.NewConflict("an account with this email already exists")
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// FindByEmail retrieves a user by their email address.
// Returns apperror.NotFound if no user exists with this email.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	user := &User{}
	err := r.users.FindOne(ctx, bson.M{"email": email}).Decode(user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by email: %w", err)
	}

	return user, nil
}

// FindByName retrieves all users with the given name. Names are not unique,
// so this returns a slice. Callers must validate name before passing it in.
func (r *userRepository) FindByName(ctx context.Context, name string) ([]User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cursor, err := r.users.Find(ctx, bson.M{"name": name})
	if err != nil {
		return nil, fmt.Errorf("querying users by name: %w", err)
	}
	defer cursor.Close(ctx)

	var found []User
	if err := cursor.All(ctx, &found); err != nil {
		return nil, fmt.Errorf("decoding users by name: %w", err)
	}

	return found, nil
}

// EmailExists returns true if a user with the given email already exists.
// Used during signup to reject duplicates before hashing the password.
func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.users.FindOne(ctx, bson.M{"email": email}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking email existence: %w", err)
	}

	return true, nil
}

// UpdateLastLogin sets the last_login_at timestamp to now for the given user.
func (r *userRepository) UpdateLastLogin(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"last_login_at": time.Now().UTC()}}
	_, err := r.users.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}

	return nil
}
