// Package mockstorage provides a testify-based mock implementation
// of the storage contract. It is used to drive service and router
// failure paths that the real backends cannot easily produce.
package mockstorage

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/interioai/internal/models"
	"github.com/patric-chuzhbe/interioai/internal/user"
)

// StorageMock implements storage.Storage on top of mock.Mock.
type StorageMock struct {
	mock.Mock
}

func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *StorageMock) BeginTransaction() (*sql.Tx, error) {
	args := m.Called()
	tx, _ := args.Get(0).(*sql.Tx)
	return tx, args.Error(1)
}

func (m *StorageMock) CommitTransaction(tx *sql.Tx) error {
	args := m.Called(tx)
	return args.Error(0)
}

func (m *StorageMock) RollbackTransaction(tx *sql.Tx) error {
	args := m.Called(tx)
	return args.Error(0)
}

func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User, tx *sql.Tx) (int64, error) {
	args := m.Called(ctx, usr, tx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *StorageMock) GetUserByID(ctx context.Context, userID int64, tx *sql.Tx) (*user.User, error) {
	args := m.Called(ctx, userID, tx)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Error(1)
}

func (m *StorageMock) GetUserByEmail(ctx context.Context, email string, tx *sql.Tx) (*user.User, error) {
	args := m.Called(ctx, email, tx)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Error(1)
}

func (m *StorageMock) IsEmailTaken(ctx context.Context, email string, exceptUserID int64, tx *sql.Tx) (bool, error) {
	args := m.Called(ctx, email, exceptUserID, tx)
	return args.Bool(0), args.Error(1)
}

func (m *StorageMock) UpdateUser(ctx context.Context, usr *user.User, tx *sql.Tx) error {
	args := m.Called(ctx, usr, tx)
	return args.Error(0)
}

func (m *StorageMock) DeleteUser(ctx context.Context, userID int64, tx *sql.Tx) error {
	args := m.Called(ctx, userID, tx)
	return args.Error(0)
}

func (m *StorageMock) CreateDesign(ctx context.Context, design *models.Design, tx *sql.Tx) (int64, error) {
	args := m.Called(ctx, design, tx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *StorageMock) GetDesignByID(ctx context.Context, designID int64, tx *sql.Tx) (*models.Design, error) {
	args := m.Called(ctx, designID, tx)
	design, _ := args.Get(0).(*models.Design)
	return design, args.Error(1)
}

func (m *StorageMock) GetUserDesigns(ctx context.Context, userID int64, tx *sql.Tx) ([]models.Design, error) {
	args := m.Called(ctx, userID, tx)
	designs, _ := args.Get(0).([]models.Design)
	return designs, args.Error(1)
}

func (m *StorageMock) DeleteDesign(ctx context.Context, designID int64, tx *sql.Tx) error {
	args := m.Called(ctx, designID, tx)
	return args.Error(0)
}

func (m *StorageMock) DeleteUserDesigns(ctx context.Context, userID int64, tx *sql.Tx) (int64, error) {
	args := m.Called(ctx, userID, tx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *StorageMock) GetNumberOfUsers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *StorageMock) GetNumberOfDesigns(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
