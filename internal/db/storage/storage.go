// Package storage declares the persistence contract shared by the
// PostgreSQL, JSON-file and in-memory backends.
package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/patric-chuzhbe/interioai/internal/models"
	"github.com/patric-chuzhbe/interioai/internal/user"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDesignNotFound = errors.New("design not found")

	// ErrEmailTaken is the store-level uniqueness violation on user emails.
	ErrEmailTaken = errors.New("email already registered")
)

type Storage interface {
	BeginTransaction() (*sql.Tx, error)

	RollbackTransaction(transaction *sql.Tx) error

	CommitTransaction(transaction *sql.Tx) error

	// CreateUser inserts the user and returns the assigned identifier.
	CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (int64, error)

	GetUserByID(ctx context.Context, userID int64, transaction *sql.Tx) (*user.User, error)

	GetUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, error)

	// IsEmailTaken reports whether a user other than exceptUserID owns email.
	// Pass 0 to check against every user.
	IsEmailTaken(
		ctx context.Context,
		email string,
		exceptUserID int64,
		transaction *sql.Tx,
	) (bool, error)

	UpdateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) error

	DeleteUser(ctx context.Context, userID int64, transaction *sql.Tx) error

	CreateDesign(ctx context.Context, design *models.Design, transaction *sql.Tx) (int64, error)

	GetDesignByID(ctx context.Context, designID int64, transaction *sql.Tx) (*models.Design, error)

	// GetUserDesigns returns the designs of a user, newest first.
	GetUserDesigns(ctx context.Context, userID int64, transaction *sql.Tx) ([]models.Design, error)

	DeleteDesign(ctx context.Context, designID int64, transaction *sql.Tx) error

	DeleteUserDesigns(ctx context.Context, userID int64, transaction *sql.Tx) (int64, error)

	GetNumberOfUsers(ctx context.Context) (int64, error)

	GetNumberOfDesigns(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error

	Close() error
}
