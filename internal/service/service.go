// Package service implements the account and design operations behind the HTTP API.
// Every method validates its input, runs writes inside one storage transaction
// and reports failures as *Error values tagged with a Kind.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/patric-chuzhbe/interioai/internal/db/storage"
	"github.com/patric-chuzhbe/interioai/internal/models"
	"github.com/patric-chuzhbe/interioai/internal/user"
)

type transactioner interface {
	BeginTransaction() (*sql.Tx, error)

	RollbackTransaction(transaction *sql.Tx) error

	CommitTransaction(transaction *sql.Tx) error
}

type userKeeper interface {
	CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (int64, error)
	GetUserByID(ctx context.Context, userID int64, transaction *sql.Tx) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, error)
	IsEmailTaken(ctx context.Context, email string, exceptUserID int64, transaction *sql.Tx) (bool, error)
	UpdateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) error
	DeleteUser(ctx context.Context, userID int64, transaction *sql.Tx) error
}

type designKeeper interface {
	CreateDesign(ctx context.Context, design *models.Design, transaction *sql.Tx) (int64, error)
	GetDesignByID(ctx context.Context, designID int64, transaction *sql.Tx) (*models.Design, error)
	GetUserDesigns(ctx context.Context, userID int64, transaction *sql.Tx) ([]models.Design, error)
	DeleteDesign(ctx context.Context, designID int64, transaction *sql.Tx) error
	DeleteUserDesigns(ctx context.Context, userID int64, transaction *sql.Tx) (int64, error)
}

type statsKeeper interface {
	GetNumberOfUsers(ctx context.Context) (int64, error)
	GetNumberOfDesigns(ctx context.Context) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type store interface {
	transactioner
	userKeeper
	designKeeper
	statsKeeper
	pinger
}

type Service struct {
	db       store
	validate *validator.Validate
}

func New(db store) *Service {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Service{
		db:       db,
		validate: validate,
	}
}

// rollback is deferred right after BeginTransaction; after a successful commit it is a no-op.
func (s *Service) rollback(transaction *sql.Tx) {
	_ = s.db.RollbackTransaction(transaction)
}

// Signup registers a new user and returns its representation.
func (s *Service) Signup(ctx context.Context, request models.SignupRequest) (*user.Response, error) {
	if err := s.validate.Struct(request); err != nil {
		return nil, newValidationError(msgMissingRequiredFields)
	}

	tx, err := s.db.BeginTransaction()
	if err != nil {
		return nil, newServerError("Signup", err)
	}
	defer s.rollback(tx)

	taken, err := s.db.IsEmailTaken(ctx, request.Email, 0, tx)
	if err != nil {
		return nil, newServerError("Signup", err)
	}
	if taken {
		return nil, newConflictError(msgEmailAlreadyRegistered, nil)
	}

	passwordHash, err := user.HashPassword(request.Password)
	if err != nil {
		return nil, newServerError("Signup", err)
	}

	userID, err := s.db.CreateUser(
		ctx,
		&user.User{
			Name:         request.Name,
			Email:        request.Email,
			PasswordHash: passwordHash,
		},
		tx,
	)
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			return nil, newConflictError(msgEmailAlreadyRegistered, err)
		}
		return nil, newServerError("Signup", err)
	}

	created, err := s.db.GetUserByID(ctx, userID, tx)
	if err != nil {
		return nil, newServerError("Signup", err)
	}

	if err := s.db.CommitTransaction(tx); err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			return nil, newConflictError(msgEmailAlreadyRegistered, err)
		}
		return nil, newServerError("Signup", err)
	}

	return created.ToResponse(), nil
}

// Login checks the credentials. Unknown email and wrong password fail the same way.
func (s *Service) Login(ctx context.Context, request models.LoginRequest) (*user.Response, error) {
	if err := s.validate.Struct(request); err != nil {
		return nil, newValidationError(msgEmailAndPasswordNeeded)
	}

	usr, err := s.db.GetUserByEmail(ctx, request.Email, nil)
	if err != nil && !errors.Is(err, storage.ErrUserNotFound) {
		return nil, newServerError("Login", err)
	}

	if !user.CheckPassword(usr, request.Password) {
		return nil, newAuthError()
	}

	return usr.ToResponse(), nil
}

// GetUser returns the user with the given id.
func (s *Service) GetUser(ctx context.Context, userID int64) (*user.Response, error) {
	usr, err := s.db.GetUserByID(ctx, userID, nil)
	if err != nil {
		return nil, s.userLookupError("GetUser", err)
	}

	return usr.ToResponse(), nil
}

// UpdateUser applies the fields present in request to the user.
func (s *Service) UpdateUser(
	ctx context.Context,
	userID int64,
	request models.UpdateUserRequest,
) (*user.Response, error) {
	tx, err := s.db.BeginTransaction()
	if err != nil {
		return nil, newServerError("UpdateUser", err)
	}
	defer s.rollback(tx)

	usr, err := s.db.GetUserByID(ctx, userID, tx)
	if err != nil {
		return nil, s.userLookupError("UpdateUser", err)
	}

	if request.Name != nil {
		if *request.Name == "" {
			return nil, newValidationError(fmt.Sprintf(msgEmptyField, "name"))
		}
		usr.Name = *request.Name
	}

	if request.Email != nil {
		if *request.Email == "" {
			return nil, newValidationError(fmt.Sprintf(msgEmptyField, "email"))
		}
		taken, err := s.db.IsEmailTaken(ctx, *request.Email, userID, tx)
		if err != nil {
			return nil, newServerError("UpdateUser", err)
		}
		if taken {
			return nil, newConflictError(msgEmailAlreadyInUse, nil)
		}
		usr.Email = *request.Email
	}

	if err := s.db.UpdateUser(ctx, usr, tx); err != nil {
		switch {
		case errors.Is(err, storage.ErrEmailTaken):
			return nil, newConflictError(msgEmailAlreadyInUse, err)
		case errors.Is(err, storage.ErrUserNotFound):
			return nil, newNotFoundError(msgUserNotFound, err)
		}
		return nil, newServerError("UpdateUser", err)
	}

	updated, err := s.db.GetUserByID(ctx, userID, tx)
	if err != nil {
		return nil, newServerError("UpdateUser", err)
	}

	if err := s.db.CommitTransaction(tx); err != nil {
		return nil, newServerError("UpdateUser", err)
	}

	return updated.ToResponse(), nil
}

// DeleteUser removes the user and every design it owns in one transaction.
// It is not reachable over HTTP.
func (s *Service) DeleteUser(ctx context.Context, userID int64) error {
	tx, err := s.db.BeginTransaction()
	if err != nil {
		return newServerError("DeleteUser", err)
	}
	defer s.rollback(tx)

	if _, err := s.db.GetUserByID(ctx, userID, tx); err != nil {
		return s.userLookupError("DeleteUser", err)
	}

	if _, err := s.db.DeleteUserDesigns(ctx, userID, tx); err != nil {
		return newServerError("DeleteUser", err)
	}

	if err := s.db.DeleteUser(ctx, userID, tx); err != nil {
		return s.userLookupError("DeleteUser", err)
	}

	if err := s.db.CommitTransaction(tx); err != nil {
		return newServerError("DeleteUser", err)
	}

	return nil
}

// SaveDesign stores a new design for an existing user.
// The owner is checked before the required fields.
func (s *Service) SaveDesign(ctx context.Context, request models.SaveDesignRequest) (*models.Design, error) {
	tx, err := s.db.BeginTransaction()
	if err != nil {
		return nil, newServerError("SaveDesign", err)
	}
	defer s.rollback(tx)

	if _, err := s.db.GetUserByID(ctx, request.UserID, tx); err != nil {
		return nil, s.userLookupError("SaveDesign", err)
	}

	if err := s.validate.Struct(request); err != nil {
		return nil, missingFieldError(err)
	}

	design := &models.Design{
		UserID:    request.UserID,
		RoomType:  request.RoomType,
		Style:     request.Style,
		Palette:   request.Palette,
		Furniture: request.Furniture,
		Width:     request.Width,
		Length:    request.Length,
	}

	designID, err := s.db.CreateDesign(ctx, design, tx)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, newNotFoundError(msgUserNotFound, err)
		}
		return nil, newServerError("SaveDesign", err)
	}

	created, err := s.db.GetDesignByID(ctx, designID, tx)
	if err != nil {
		return nil, newServerError("SaveDesign", err)
	}

	if err := s.db.CommitTransaction(tx); err != nil {
		return nil, newServerError("SaveDesign", err)
	}

	return created, nil
}

// GetUserDesigns lists the designs of an existing user, newest first.
func (s *Service) GetUserDesigns(ctx context.Context, userID int64) ([]models.Design, error) {
	if _, err := s.db.GetUserByID(ctx, userID, nil); err != nil {
		return nil, s.userLookupError("GetUserDesigns", err)
	}

	designs, err := s.db.GetUserDesigns(ctx, userID, nil)
	if err != nil {
		return nil, newServerError("GetUserDesigns", err)
	}

	return designs, nil
}

// GetDesign returns a single design.
func (s *Service) GetDesign(ctx context.Context, designID int64) (*models.Design, error) {
	design, err := s.db.GetDesignByID(ctx, designID, nil)
	if err != nil {
		return nil, s.designLookupError("GetDesign", err)
	}

	return design, nil
}

// DeleteDesign removes a single design.
func (s *Service) DeleteDesign(ctx context.Context, designID int64) error {
	tx, err := s.db.BeginTransaction()
	if err != nil {
		return newServerError("DeleteDesign", err)
	}
	defer s.rollback(tx)

	if err := s.db.DeleteDesign(ctx, designID, tx); err != nil {
		return s.designLookupError("DeleteDesign", err)
	}

	if err := s.db.CommitTransaction(tx); err != nil {
		return newServerError("DeleteDesign", err)
	}

	return nil
}

// GetInternalStats returns the number of users and designs.
func (s *Service) GetInternalStats(ctx context.Context) (models.InternalStatsResponse, error) {
	users, err := s.db.GetNumberOfUsers(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, newServerError("GetInternalStats", err)
	}

	designs, err := s.db.GetNumberOfDesigns(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, newServerError("GetInternalStats", err)
	}

	return models.InternalStatsResponse{
		Success: true,
		Users:   users,
		Designs: designs,
	}, nil
}

// Ping checks the health of the storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Service) userLookupError(operation string, err error) error {
	if errors.Is(err, storage.ErrUserNotFound) {
		return newNotFoundError(msgUserNotFound, err)
	}

	return newServerError(operation, err)
}

func (s *Service) designLookupError(operation string, err error) error {
	if errors.Is(err, storage.ErrDesignNotFound) {
		return newNotFoundError(msgDesignNotFound, err)
	}

	return newServerError(operation, err)
}

// missingFieldError names the first field that failed validation.
func missingFieldError(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		return newValidationError(fmt.Sprintf(msgMissingFieldTemplate, validationErrors[0].Field()))
	}

	return newValidationError(msgMissingRequiredFields)
}
