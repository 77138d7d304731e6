package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/picketapp/picket/internal/auth/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, device_id, public_key, platform, username, password_hash, display_name, created_at, last_login_at`

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, device_id, public_key, platform, username, password_hash, display_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.DeviceID, u.PublicKey, u.Platform,
		mapOptionalString(u.Username), mapOptionalString(u.PasswordHash),
		u.DisplayName, time.Now().UTC(),
	)
	return mapConstraint(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByDeviceID(ctx context.Context, deviceID string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE device_id = ?`, deviceID)
	return scanUser(row)
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (r *usersRepo) SetCredentials(ctx context.Context, userID, username, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET username = ?, password_hash = ? WHERE id = ?`,
		username, passwordHash, userID,
	)
	if err != nil {
		return mapConstraint(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *usersRepo) TouchLastLogin(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = ? WHERE id = ?`,
		time.Now().UTC(), userID,
	)
	return err
}

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u            domain.User
		username     sql.NullString
		passwordHash sql.NullString
		lastLogin    sql.NullTime
	)
	err := row.Scan(&u.ID, &u.DeviceID, &u.PublicKey, &u.Platform,
		&username, &passwordHash, &u.DisplayName, &u.CreatedAt, &lastLogin)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.Username = mapNullStringPtr(username)
	u.PasswordHash = mapNullStringPtr(passwordHash)
	u.LastLoginAt = mapNullTimePtr(lastLogin)
	return u, nil
}
