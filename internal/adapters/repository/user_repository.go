package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/ports"
)

const userColumns = `id, username, email, password_hash, color, avatar, is_active, date_joined`

// UserRepositoryImpl implements the UserRepository interface
type UserRepositoryImpl struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) ports.UserRepository {
	return &UserRepositoryImpl{db: db}
}

func (r *UserRepositoryImpl) Create(ctx context.Context, user *entities.User) error {
	query := r.db.Rebind(`
		INSERT INTO users (username, email, password_hash, color, avatar, is_active, date_joined)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	if user.Color == "" {
		user.Color = entities.DefaultUserColor
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = now()
	}

	err := r.db.QueryRowxContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.Color,
		user.Avatar, user.IsActive, user.DateJoined,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return entities.NewValidationError("A user with that username or email already exists.")
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *UserRepositoryImpl) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *UserRepositoryImpl) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *UserRepositoryImpl) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	return r.getBy(ctx, "username", username)
}

func (r *UserRepositoryImpl) getBy(ctx context.Context, column string, value interface{}) (*entities.User, error) {
	query := r.db.Rebind(fmt.Sprintf(`SELECT %s FROM users WHERE %s = ?`, userColumns, column))

	var user entities.User
	if err := r.db.GetContext(ctx, &user, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}

	return &user, nil
}

func (r *UserRepositoryImpl) Update(ctx context.Context, user *entities.User) error {
	query := r.db.Rebind(`
		UPDATE users
		SET username = ?, email = ?, password_hash = ?, color = ?, avatar = ?, is_active = ?
		WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.Color,
		user.Avatar, user.IsActive, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return entities.NewValidationError("A user with that username or email already exists.")
		}
		return fmt.Errorf("update user: %w", err)
	}

	return rowsAffectedOrNotFound(result, entities.ErrUserNotFound)
}

// Delete removes the user. Assigned tasks are unassigned and the user's
// comments, attachments, activity and tokens go with it.
func (r *UserRepositoryImpl) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	return rowsAffectedOrNotFound(result, entities.ErrUserNotFound)
}

func (r *UserRepositoryImpl) List(ctx context.Context, filter ports.UserFilter) ([]*entities.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users`, userColumns)
	var args []interface{}

	if filter.Search != "" {
		query += ` WHERE LOWER(username) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\'`
		pattern := likePattern(filter.Search)
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY id ASC`

	users := []*entities.User{}
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return users, nil
}

func (r *UserRepositoryImpl) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}

	return count, nil
}
