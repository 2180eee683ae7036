package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/auth-service/internal/model"
)

func newMockRepo(t *testing.T) (*UserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserRepo(db), mock
}

var cols = []string{"id", "name", "username", "password_hash", "password_changed_at",
	"password_reset_token", "password_reset_expires", "created_at", "updated_at"}

func TestUserRepo_CreateNormalizesUsername(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("Ann", "ann@example.com", "hash", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(7, 1))

	u, err := repo.Create(context.Background(), &model.User{Name: "Ann", Username: " Ann@Example.com ", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), u.ID)
	assert.Equal(t, "ann@example.com", u.Username)
	assert.False(t, u.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_CreateDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := repo.Create(context.Background(), &model.User{Name: "Ann", Username: "ann@example.com", PasswordHash: "hash"})
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func TestUserRepo_FindByUsername(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC().Truncate(time.Second)
	exp := now.Add(10 * time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username=?")).
		WithArgs("ann@example.com").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, "Ann", "ann@example.com", "hash", now, "digest", exp, now, now))

	u, err := repo.FindByUsername(context.Background(), "ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name)
	require.NotNil(t, u.PasswordChangedAt)
	assert.True(t, u.PasswordChangedAt.Equal(now))
	require.True(t, u.HasResetToken())
	assert.Equal(t, "digest", *u.PasswordResetToken)
	assert.True(t, u.PasswordResetExpires.Equal(exp))
}

func TestUserRepo_FindNullColumns(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(3, "Bo", "bo@example.com", "hash", nil, nil, nil, now, now))

	u, err := repo.FindByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Nil(t, u.PasswordChangedAt)
	assert.False(t, u.HasResetToken())
}

func TestUserRepo_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE password_reset_token=?")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByResetToken(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepo_SaveWritesResetState(t *testing.T) {
	repo, mock := newMockRepo(t)
	exp := time.Now().UTC().Add(time.Minute)
	u := &model.User{ID: 5, Name: "Ann", Username: "ann@example.com", PasswordHash: "hash"}
	u.SetResetToken("digest", exp)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).
		WithArgs("Ann", "ann@example.com", "hash", nil, "digest", exp, sqlmock.AnyArg(), uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := repo.Save(context.Background(), u)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_SaveMissingRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Save(context.Background(), &model.User{ID: 9, Username: "x@example.com"})
	assert.ErrorIs(t, err, ErrNotFound)
}
