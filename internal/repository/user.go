package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"blogapi/internal/models"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CountUsers(ctx context.Context) (int, error)
}

type userRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewUserRepository(db *sqlx.DB, logger *zap.Logger) UserRepository {
	return &userRepository{db: db, logger: logger}
}

// CreateUser inserts the user inside one transaction and fills in ID and
// CreatedAt. A taken username or email yields ErrDuplicateUser.
func (r *userRepository) CreateUser(ctx context.Context, user *models.User) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var taken int
	query := tx.Rebind(`SELECT COUNT(*) FROM users WHERE username = ? OR email = ?`)
	if err := tx.GetContext(ctx, &taken, query, user.Username, user.Email); err != nil {
		r.logger.Error("Failed to check existing users", zap.String("username", user.Username), zap.Error(err))
		return fmt.Errorf("failed to check existing users: %w", err)
	}
	if taken > 0 {
		return ErrDuplicateUser
	}

	createdAt := time.Now().UTC()
	query = tx.Rebind(`INSERT INTO users (username, email, first_name, middle_name, last_name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err = tx.QueryRowxContext(ctx, query,
		user.Username, user.Email, user.FirstName, user.MiddleName, user.LastName, user.PasswordHash, createdAt,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUser
		}
		r.logger.Error("Failed to insert user", zap.String("username", user.Username), zap.Error(err))
		return fmt.Errorf("failed to insert user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUser
		}
		r.logger.Error("Failed to commit user", zap.String("username", user.Username), zap.Error(err))
		return fmt.Errorf("failed to commit user: %w", err)
	}

	user.CreatedAt = createdAt
	return nil
}

func (r *userRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	query := r.db.Rebind(`SELECT id, username, email, first_name, middle_name, last_name, password_hash, created_at
		FROM users WHERE username = ?`)
	err := r.db.GetContext(ctx, &user, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		r.logger.Error("Failed to get user by username", zap.String("username", username), zap.Error(err))
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`)
	if err != nil {
		r.logger.Error("Failed to count users", zap.Error(err))
		return 0, err
	}
	return count, nil
}
