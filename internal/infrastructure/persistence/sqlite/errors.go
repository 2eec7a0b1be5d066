package sqlite

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// IsBusy reports whether err comes from lock contention on the database file
func IsBusy(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
}

// IsUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure
func IsUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// IsTriggerAbort reports whether err was raised by a RAISE(ABORT, ...) trigger
func IsTriggerAbort(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintTrigger
}
