// Package memorystorage provides a non-persistent storage backend used when
// neither a database DSN nor a storage file is configured.
package memorystorage

import (
	"github.com/patric-chuzhbe/interioai/internal/db/jsondb"
)

// MemoryStorage is the jsondb backend without a backing file.
type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: &jsondb.JSONDB{
			Cache: jsondb.NewCache(),
		},
	}, nil
}

// Close discards nothing: the data lives only as long as the process.
func (theStorage *MemoryStorage) Close() error {
	return nil
}
