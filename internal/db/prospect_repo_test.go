package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"relaunch/internal/types"
)

func TestProspectRepository_ListByUser(t *testing.T) {
	db := new(mockDBTX)
	repo := NewProspectRepository(db)

	rows := newMockRows([][]any{
		{"p1", "u1", "ann@gmail.com", "Ann", "Apollo", "Acme", "Pending"},
		{"p2", "u1", "bob@gmail.com", nil, nil, nil, nil},
	})
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), []any{"u1"}).Return(rows, nil)

	got, err := repo.ListByUser(context.Background(), "u1")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, types.Recipient{
		ID: "p1", UserID: "u1", Email: "ann@gmail.com", Name: "Ann",
		Project: "Apollo", Company: "Acme", Status: "Pending",
	}, got[0])
	assert.Equal(t, "p2", got[1].ID)
	assert.Empty(t, got[1].Name)
	assert.False(t, got[1].Eligible())
	assert.True(t, rows.closed)
}

func TestProspectRepository_ListByUser_IterationError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewProspectRepository(db)

	rows := newMockRows(nil)
	rows.errVal = errors.New("connection lost")
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), []any{"u1"}).Return(rows, nil)

	_, err := repo.ListByUser(context.Background(), "u1")

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
