package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/auth-service/internal/model"
)

// mysqlDuplicateEntry is the server error number for unique key violations.
const mysqlDuplicateEntry = 1062

const userColumns = "id,name,username,password_hash,password_changed_at,password_reset_token,password_reset_expires,created_at,updated_at"

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts u and fills in its ID and timestamps.
func (r *UserRepo) Create(ctx context.Context, u *model.User) (*model.User, error) {
	u.Username = normalize(u.Username)
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name,username,password_hash,password_changed_at,created_at,updated_at) VALUES (?,?,?,?,?,?)",
		u.Name, u.Username, u.PasswordHash, nullTime(u.PasswordChangedAt), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return nil, ErrUsernameExists
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	u.ID = uint64(id)
	return u, nil
}

// Save overwrites every mutable column of u (last write wins).
func (r *UserRepo) Save(ctx context.Context, u *model.User) (*model.User, error) {
	u.UpdatedAt = time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET name=?, username=?, password_hash=?, password_changed_at=?,
		 password_reset_token=?, password_reset_expires=?, updated_at=? WHERE id=?`,
		u.Name, normalize(u.Username), u.PasswordHash, nullTime(u.PasswordChangedAt),
		nullString(u.PasswordResetToken), nullTime(u.PasswordResetExpires), u.UpdatedAt, u.ID)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 for unchanged rows too, so confirm the row exists.
		if _, err := r.FindByID(ctx, u.ID); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// FindByUsername fetches a user by normalized username.
func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", normalize(username)))
}

// FindByID fetches a user by id.
func (r *UserRepo) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// FindByResetToken fetches the user holding the given reset digest.  Expiry
// is checked by the caller.
func (r *UserRepo) FindByResetToken(ctx context.Context, digest string) (*model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE password_reset_token=? LIMIT 1", digest))
}

func (r *UserRepo) scanOne(row *sql.Row) (*model.User, error) {
	var (
		u         model.User
		changedAt sql.NullTime
		resetTok  sql.NullString
		resetExp  sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Name, &u.Username, &u.PasswordHash, &changedAt,
		&resetTok, &resetExp, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if changedAt.Valid {
		t := changedAt.Time
		u.PasswordChangedAt = &t
	}
	if resetTok.Valid && resetExp.Valid {
		u.SetResetToken(resetTok.String, resetExp.Time)
	}
	return &u, nil
}

func normalize(username string) string { return strings.ToLower(strings.TrimSpace(username)) }

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
