package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"gorm.io/gorm"

	customErrors "github.com/tianwen-game/tw-account/internal/domain/account/errors"
	"github.com/tianwen-game/tw-account/internal/domain/account/model"
)

type AccountRepo struct {
	db *gorm.DB
}

func NewAccountRepo(db *gorm.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) Create(ctx context.Context, a model.Account) error {
	res := r.db.WithContext(ctx).Create(&a)
	if err := res.Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return customErrors.ErrAlreadyExists
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return customErrors.ErrAlreadyExists
		}
		return customErrors.WrapInternal(err, "CreateAccount")
	}
	return nil
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	var a model.Account
	res := r.db.WithContext(ctx).Where("email = ?", email).First(&a)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.Account{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.Account{}, customErrors.WrapInternal(err, "GetAccountByEmail")
	}

	return a, nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Account, error) {
	var a model.Account
	res := r.db.WithContext(ctx).Where("id = ?", id).First(&a)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.Account{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.Account{}, customErrors.WrapInternal(err, "GetAccountByID")
	}

	return a, nil
}

func (r *AccountRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AccountStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Account{}).
		Where("id = ?", id).
		Update("status", status)
	if err := res.Error; err != nil {
		return customErrors.WrapInternal(err, "UpdateAccountStatus")
	}
	if res.RowsAffected == 0 {
		return customErrors.ErrNotFound
	}

	return nil
}

func (r *AccountRepo) ListCharactersByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Character, error) {
	var chars []model.Character
	res := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Find(&chars)
	if err := res.Error; err != nil {
		return nil, customErrors.WrapInternal(err, "ListCharactersByOwner")
	}

	return chars, nil
}
