package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, email, hashed_password, full_name, role, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.HashedPassword,
		&i.FullName,
		&i.Role,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users
WHERE lower(email) = lower($1) AND is_active = true`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByID = `SELECT ` + userColumns + ` FROM users
WHERE id = $1 AND is_active = true`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

const createUser = `INSERT INTO users (email, hashed_password, full_name, role)
VALUES ($1, $2, $3, $4)
RETURNING ` + userColumns

type CreateUserParams struct {
	Email          string `json:"email"`
	HashedPassword string `json:"hashed_password"`
	FullName       string `json:"full_name"`
	Role           string `json:"role"`
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, createUser,
		arg.Email,
		arg.HashedPassword,
		arg.FullName,
		arg.Role,
	))
}

const listUsers = `SELECT ` + userColumns + ` FROM users
WHERE ($1::text IS NULL OR role = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListUsersParams struct {
	Role   pgtype.Text `json:"role"`
	Limit  int32       `json:"limit"`
	Offset int32       `json:"offset"`
}

func (q *Queries) ListUsers(ctx context.Context, arg ListUsersParams) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsers, arg.Role, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanUser)
}

const countUsers = `SELECT count(*) FROM users WHERE ($1::text IS NULL OR role = $1)`

func (q *Queries) CountUsers(ctx context.Context, role pgtype.Text) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countUsers, role).Scan(&count)
	return count, err
}

const updateUser = `UPDATE users
SET email = $2, full_name = $3, role = $4, updated_at = now()
WHERE id = $1
RETURNING ` + userColumns

type UpdateUserParams struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Role     string    `json:"role"`
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, updateUser,
		arg.ID,
		arg.Email,
		arg.FullName,
		arg.Role,
	))
}

const setUserActive = `UPDATE users SET is_active = $2, updated_at = now()
WHERE id = $1
RETURNING ` + userColumns

type SetUserActiveParams struct {
	ID       uuid.UUID `json:"id"`
	IsActive bool      `json:"is_active"`
}

func (q *Queries) SetUserActive(ctx context.Context, arg SetUserActiveParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, setUserActive, arg.ID, arg.IsActive))
}

const getNotificationPreferences = `SELECT user_id, proposal_updates, payment_updates, updated_at
FROM notification_preferences WHERE user_id = $1`

func (q *Queries) GetNotificationPreferences(ctx context.Context, userID uuid.UUID) (NotificationPreference, error) {
	var i NotificationPreference
	err := q.db.QueryRow(ctx, getNotificationPreferences, userID).Scan(
		&i.UserID,
		&i.ProposalUpdates,
		&i.PaymentUpdates,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertNotificationPreferences = `INSERT INTO notification_preferences (user_id, proposal_updates, payment_updates)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE
SET proposal_updates = EXCLUDED.proposal_updates,
    payment_updates = EXCLUDED.payment_updates,
    updated_at = now()
RETURNING user_id, proposal_updates, payment_updates, updated_at`

type UpsertNotificationPreferencesParams struct {
	UserID          uuid.UUID `json:"user_id"`
	ProposalUpdates bool      `json:"proposal_updates"`
	PaymentUpdates  bool      `json:"payment_updates"`
}

func (q *Queries) UpsertNotificationPreferences(ctx context.Context, arg UpsertNotificationPreferencesParams) (NotificationPreference, error) {
	var i NotificationPreference
	err := q.db.QueryRow(ctx, upsertNotificationPreferences, arg.UserID, arg.ProposalUpdates, arg.PaymentUpdates).Scan(
		&i.UserID,
		&i.ProposalUpdates,
		&i.PaymentUpdates,
		&i.UpdatedAt,
	)
	return i, err
}
