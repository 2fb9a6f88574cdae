package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/tianwen-game/tw-account/internal/domain/account/model"
)

type AccountRepo interface {
	Create(ctx context.Context, a model.Account) error

	GetByEmail(ctx context.Context, email string) (model.Account, error)

	GetByID(ctx context.Context, id uuid.UUID) (model.Account, error)

	// UpdateStatus is used by account-management flows outside this core.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.AccountStatus) error

	ListCharactersByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Character, error)
}
