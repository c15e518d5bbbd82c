package model

import "time"

// Identity is the worker record a badge tag resolves to. It is owned by the
// back office; this service only reads it.
type Identity struct {
	ID          string    `db:"id" json:"id"`
	TagID       string    `db:"tag_id" json:"tagId"`
	DisplayName string    `db:"display_name" json:"displayName"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}
