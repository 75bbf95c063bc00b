package repository

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// ErrDuplicate is returned when an insert collides with a unique key.
var ErrDuplicate = errors.New("duplicate key")

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) || se.Code != sqlite3.ErrConstraint {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
