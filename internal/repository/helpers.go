package repository

import (
	"database/sql"
	"errors"
)

// HandleNotFound turns sql.ErrNoRows into a nil result without an error. An
// unpaired badge tag or an already-gone session is a domain outcome the
// caller decides on, not a query failure.
//
// Usage:
//
//	var identity model.Identity
//	err := r.db.GetContext(ctx, &identity, query, tagID)
//	return HandleNotFound(&identity, err)
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
