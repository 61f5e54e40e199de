package ledger

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the output lock.
var ErrLocked = errors.New("output file is locked by another process")

// Store loads and saves a ledger.
type Store interface {
	Load() (*Ledger, error)
	Save(l *Ledger) error
}

// FileStore is a ledger kept in a single CSV, XLSX or JSON file.
type FileStore struct {
	Path string
}

// Load implements Store.
func (s FileStore) Load() (*Ledger, error) {
	return ReadLedger(s.Path)
}

// Save implements Store.
func (s FileStore) Save(l *Ledger) error {
	return WriteLedger(s.Path, l)
}

// Lock takes an exclusive advisory lock on <path>.lock and returns the
// function releasing it.
func Lock(path string) (func() error, error) {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return lock.Unlock, nil
}
