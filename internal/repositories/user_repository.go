package repositories

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	_ "embed"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/binsarkiel/chatto/internal/models"
	"github.com/binsarkiel/chatto/internal/ports"
)

//go:embed migrations/001_create_users_table_up.sql
var createUsersTableQuery string

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

type UserRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewUserRepository(db *sql.DB, logger *slog.Logger) (*UserRepository, error) {
	repo := UserRepository{db: db, logger: logger}
	if _, err := repo.db.Exec(createUsersTableQuery); err != nil {
		logger.Error(err.Error())
		return nil, err
	}
	return &repo, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	user := models.NewUser(uuid.New().String(), username, email, passwordHash)

	err := r.db.QueryRowContext(ctx,
		"INSERT INTO users (id, username, email, password_hash) VALUES ($1, $2, $3, $4) RETURNING created_at",
		user.ID, username, email, passwordHash).Scan(&user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ports.ErrDuplicate
		}
		return nil, err
	}

	return user, nil
}

func (r *UserRepository) getUser(ctx context.Context, where, value string) (*models.User, error) {
	var user models.User

	query := "SELECT id, username, email, password_hash, created_at FROM users WHERE " + where + " = $1"
	row := r.db.QueryRowContext(ctx, query, value)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, "id", id)
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, "email", email)
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getUser(ctx, "username", username)
}

func (r *UserRepository) ListUsers(ctx context.Context, excludeID string) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, username, email, created_at FROM users WHERE id <> $1 ORDER BY username", excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func (r *UserRepository) UpdateUsername(ctx context.Context, id, username string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET username = $2 WHERE id = $1", id, username)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ports.ErrNotFound
	}
	return nil
}
