// Package repository persists users in MySQL.  The sentinel errors below let
// higher layers tell "absent" and "duplicate" apart from driver failures.
package repository

import "errors"

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// ErrUsernameExists is returned by Create when the username is taken.
// Handlers translate it into a validation failure.
var ErrUsernameExists = errors.New("username already exists")
