package storage

import (
	"github.com/qubit-star/hsb-core/internal/infrastructure/database"
)

// Store persists hub state to the sqlite database. It implements both
// the device and scene store interfaces; the registries decide when to
// write, the store only maps records to rows.
type Store struct {
	db *database.DB
}

// New creates a store on an opened, migrated database.
func New(db *database.DB) *Store {
	return &Store{db: db}
}
