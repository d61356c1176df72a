package ports

import (
	"context"

	"github.com/binsarkiel/chatto/internal/models"
)

type IUserRepository interface {
	IUserRepositoryReader
	IUserRepositoryWriter
}

type IUserRepositoryReader interface {
	// Lookups return (nil, nil) when no row matches.
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context, excludeID string) ([]models.User, error)
}

type IUserRepositoryWriter interface {
	// CreateUser returns ErrDuplicate when the username or email is taken.
	CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error)
	UpdateUsername(ctx context.Context, id, username string) error
}
