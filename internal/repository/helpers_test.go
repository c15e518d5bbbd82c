package repository

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packstation/station-server-go/internal/model"
)

func TestHandleNotFound(t *testing.T) {
	t.Run("no rows is a nil result, not an error", func(t *testing.T) {
		identity, err := HandleNotFound(&model.Identity{}, sql.ErrNoRows)
		require.NoError(t, err)
		assert.Nil(t, identity)
	})

	t.Run("other errors propagate", func(t *testing.T) {
		dbErr := errors.New("connection refused")
		identity, err := HandleNotFound(&model.Identity{}, dbErr)
		assert.ErrorIs(t, err, dbErr)
		assert.Nil(t, identity)
	})

	t.Run("success returns the result", func(t *testing.T) {
		want := &model.Identity{ID: "id-a", TagID: "TAG-A"}
		got, err := HandleNotFound(want, nil)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}
