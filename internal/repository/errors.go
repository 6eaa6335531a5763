// Package repository holds the storage errors shared by the postgres, redis
// and memory adapters.
package repository

import "errors"

var (
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict covers unique violations and lost compare-and-set races.
	ErrConflict = errors.New("repository: conflict")
)
