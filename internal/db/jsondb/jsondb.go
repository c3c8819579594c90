// Package jsondb provides a storage backend that keeps users and designs in
// memory and persists them to a JSON file on Close.
package jsondb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/interioai/internal/db/storage"
	"github.com/patric-chuzhbe/interioai/internal/models"
	"github.com/patric-chuzhbe/interioai/internal/user"
)

type JSONDB struct {
	fileName string
	mu       sync.RWMutex
	Cache    CacheStruct
}

type CacheStruct struct {
	Users        map[int64]*user.User
	Designs      map[int64]*models.Design
	NextUserID   int64
	NextDesignID int64
}

// NewCache returns an empty cache with identifiers starting at 1.
func NewCache() CacheStruct {
	return CacheStruct{
		Users:        map[int64]*user.User{},
		Designs:      map[int64]*models.Design{},
		NextUserID:   1,
		NextDesignID: 1,
	}
}

// Transactions are no-ops: every method below applies its change atomically
// under the cache lock, so there is never a partial write to undo.

func (db *JSONDB) CommitTransaction(transaction *sql.Tx) error {
	return nil
}

func (db *JSONDB) RollbackTransaction(transaction *sql.Tx) error {
	return nil
}

func (db *JSONDB) BeginTransaction() (*sql.Tx, error) {
	return nil, nil
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	tmpName := fileName + ".tmp"
	if err := os.WriteFile(tmpName, jsonData, 0644); err != nil {
		return fmt.Errorf("error writing to file: %w", err)
	}

	if err := os.Rename(tmpName, fileName); err != nil {
		return fmt.Errorf("error replacing file: %w", err)
	}

	return nil
}

func parseJSONFile(fileName string, cache *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(cache)
}

// New loads the store from fileName, creating the file when it does not exist.
func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{
		fileName: fileName,
		Cache:    NewCache(),
	}

	err := parseJSONFile(db.fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("in internal/db/jsondb/jsondb.go/New(): error while `parseJSONFile()` calling: %w", err)
		}
		if err := writeToJSONFile(fileName, db.Cache); err != nil {
			return nil, fmt.Errorf("in internal/db/jsondb/jsondb.go/New(): error while `writeToJSONFile()` calling: %w", err)
		}
	}

	db.fixCache()

	return db, nil
}

// fixCache repairs maps and counters of a file written by hand or by an older build.
func (db *JSONDB) fixCache() {
	if db.Cache.Users == nil {
		db.Cache.Users = map[int64]*user.User{}
	}
	if db.Cache.Designs == nil {
		db.Cache.Designs = map[int64]*models.Design{}
	}
	for id := range db.Cache.Users {
		if id >= db.Cache.NextUserID {
			db.Cache.NextUserID = id + 1
		}
	}
	for id := range db.Cache.Designs {
		if id >= db.Cache.NextDesignID {
			db.Cache.NextDesignID = id + 1
		}
	}
}

func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

func (db *JSONDB) Close() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return writeToJSONFile(db.fileName, db.Cache)
}

func (db *JSONDB) emailOwner(email string) (int64, bool) {
	owner := funk.Find(funk.Values(db.Cache.Users), func(usr *user.User) bool {
		return usr.Email == email
	})
	if owner == nil {
		return 0, false
	}

	return owner.(*user.User).ID, true
}

func (db *JSONDB) countDesigns(userID int64) int64 {
	var count int64
	for _, design := range db.Cache.Designs {
		if design.UserID == userID {
			count++
		}
	}

	return count
}

func (db *JSONDB) userCopy(usr *user.User) *user.User {
	result := *usr
	result.DesignsCount = db.countDesigns(usr.ID)

	return &result
}

func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, taken := db.emailOwner(usr.Email); taken {
		return 0, storage.ErrEmailTaken
	}

	stored := *usr
	stored.ID = db.Cache.NextUserID
	stored.CreatedAt = time.Now().UTC()
	stored.DesignsCount = 0
	db.Cache.Users[stored.ID] = &stored
	db.Cache.NextUserID++

	return stored.ID, nil
}

func (db *JSONDB) GetUserByID(ctx context.Context, userID int64, transaction *sql.Tx) (*user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	usr, found := db.Cache.Users[userID]
	if !found {
		return nil, storage.ErrUserNotFound
	}

	return db.userCopy(usr), nil
}

func (db *JSONDB) GetUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	id, found := db.emailOwner(email)
	if !found {
		return nil, storage.ErrUserNotFound
	}

	return db.userCopy(db.Cache.Users[id]), nil
}

func (db *JSONDB) IsEmailTaken(
	ctx context.Context,
	email string,
	exceptUserID int64,
	transaction *sql.Tx,
) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	id, found := db.emailOwner(email)

	return found && id != exceptUserID, nil
}

func (db *JSONDB) UpdateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, found := db.Cache.Users[usr.ID]
	if !found {
		return storage.ErrUserNotFound
	}

	if id, taken := db.emailOwner(usr.Email); taken && id != usr.ID {
		return storage.ErrEmailTaken
	}

	stored.Name = usr.Name
	stored.Email = usr.Email

	return nil
}

func (db *JSONDB) DeleteUser(ctx context.Context, userID int64, transaction *sql.Tx) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, found := db.Cache.Users[userID]; !found {
		return storage.ErrUserNotFound
	}

	// Designs go together with their owner.
	for id, design := range db.Cache.Designs {
		if design.UserID == userID {
			delete(db.Cache.Designs, id)
		}
	}
	delete(db.Cache.Users, userID)

	return nil
}

func (db *JSONDB) CreateDesign(ctx context.Context, design *models.Design, transaction *sql.Tx) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, found := db.Cache.Users[design.UserID]; !found {
		return 0, storage.ErrUserNotFound
	}

	stored := *design
	stored.ID = db.Cache.NextDesignID
	stored.CreatedAt = time.Now().UTC()
	db.Cache.Designs[stored.ID] = &stored
	db.Cache.NextDesignID++

	return stored.ID, nil
}

func (db *JSONDB) GetDesignByID(ctx context.Context, designID int64, transaction *sql.Tx) (*models.Design, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	design, found := db.Cache.Designs[designID]
	if !found {
		return nil, storage.ErrDesignNotFound
	}
	result := *design

	return &result, nil
}

func (db *JSONDB) GetUserDesigns(ctx context.Context, userID int64, transaction *sql.Tx) ([]models.Design, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := []models.Design{}
	for _, design := range db.Cache.Designs {
		if design.UserID == userID {
			result = append(result, *design)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

func (db *JSONDB) DeleteDesign(ctx context.Context, designID int64, transaction *sql.Tx) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, found := db.Cache.Designs[designID]; !found {
		return storage.ErrDesignNotFound
	}
	delete(db.Cache.Designs, designID)

	return nil
}

func (db *JSONDB) DeleteUserDesigns(ctx context.Context, userID int64, transaction *sql.Tx) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var deleted int64
	for id, design := range db.Cache.Designs {
		if design.UserID == userID {
			delete(db.Cache.Designs, id)
			deleted++
		}
	}

	return deleted, nil
}

func (db *JSONDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Users)), nil
}

func (db *JSONDB) GetNumberOfDesigns(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Designs)), nil
}
