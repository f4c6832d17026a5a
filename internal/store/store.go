// Package store holds the persistence errors shared by every store
// implementation and the packages that consume them.
package store

import "errors"

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a unique key (such as an order code) is already taken.
	ErrConflict = errors.New("store: conflict")
)
