// Package store is the persistence boundary for games and players. It deals
// only in raw, versioned records; decoding into validated domain entities is
// the job of each entity's repository.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates no record exists for the requested kind and id.
	ErrNotFound = errors.New("store: record not found")

	// ErrExists indicates Create was called with an id already in use.
	ErrExists = errors.New("store: record already exists")

	// ErrConflict indicates Update was given a stale version: another writer
	// changed the record after it was read.
	ErrConflict = errors.New("store: version conflict")
)

// Kind names a collection of records.
type Kind string

const (
	KindGame   Kind = "game"
	KindPlayer Kind = "player"
	// KindEmail records map an email address to a player id. Creating one
	// claims the address.
	KindEmail Kind = "email"
)

// Record is the raw persisted form of an entity.
type Record struct {
	Kind    Kind            `json:"kind"`
	ID      string          `json:"id"`
	Version int64           `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// Clone returns a copy of r that shares no memory with it.
func (r Record) Clone() Record {
	out := r
	if r.Data != nil {
		out.Data = append(json.RawMessage(nil), r.Data...)
	}
	return out
}

// Store is a keyed record store. Implementations give no ordering guarantee
// across keys.
type Store interface {
	// Create persists a new record at version 1 and returns it.
	Create(ctx context.Context, rec Record) (Record, error)

	// Update replaces the record's data when rec.Version matches the stored
	// version, returning the stored record with its version incremented.
	Update(ctx context.Context, rec Record) (Record, error)

	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, kind Kind, id string) (Record, error)

	// Scan returns every record of kind for which match returns true. A nil
	// match selects all records.
	Scan(ctx context.Context, kind Kind, match func(Record) bool) ([]Record, error)

	// Delete removes the record or returns ErrNotFound.
	Delete(ctx context.Context, kind Kind, id string) error

	// Close releases any resources held by the store.
	Close() error
}

func validateKey(kind Kind, id string) error {
	if kind == "" || id == "" {
		return fmt.Errorf("store: kind and id are required (kind=%q id=%q)", kind, id)
	}
	return nil
}
