package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/tianwen-game/tw-account/internal/domain/account/model"
)

type RefreshTokenRepo interface {
	Store(ctx context.Context, t model.RefreshToken) error

	Get(ctx context.Context, lookupID uuid.UUID) (model.RefreshToken, error)

	Delete(ctx context.Context, lookupID uuid.UUID) error

	// Rotate replaces the record found under oldLookupID with next in one
	// atomic step, guarded by a re-check of oldSecret. Returns false when
	// another caller already rotated or deleted the record.
	Rotate(ctx context.Context, oldLookupID uuid.UUID, oldSecret string, next model.RefreshToken) (bool, error)
}
