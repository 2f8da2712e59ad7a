package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepositoryFindByIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"id", "full_name", "email", "phone", "created_at"}).
		AddRow("s1", "Dara", "dara@example.com", "0812", time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	users, err := repo.FindByIDs(context.Background(), []string{"s1", "ghost"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Dara", users[0].FullName)
	require.NotNil(t, users[0].Phone)
	assert.Equal(t, "0812", *users[0].Phone)
}
