package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/packstation/station-server-go/internal/model"
)

type IdentityRepository interface {
	FindByTag(ctx context.Context, tagID string) (*model.Identity, error)
	FindByID(ctx context.Context, id string) (*model.Identity, error)
}

type identityRepo struct {
	db *sqlx.DB
}

func NewIdentityRepository(db *sqlx.DB) IdentityRepository {
	return &identityRepo{db: db}
}

func (r *identityRepo) FindByTag(ctx context.Context, tagID string) (*model.Identity, error) {
	var identity model.Identity
	err := r.db.GetContext(ctx, &identity, `
		SELECT * FROM identities WHERE tag_id = $1
	`, tagID)
	return HandleNotFound(&identity, err)
}

func (r *identityRepo) FindByID(ctx context.Context, id string) (*model.Identity, error) {
	var identity model.Identity
	err := r.db.GetContext(ctx, &identity, `
		SELECT * FROM identities WHERE id = $1
	`, id)
	return HandleNotFound(&identity, err)
}
