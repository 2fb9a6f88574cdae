package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	customErrors "github.com/tianwen-game/tw-account/internal/domain/account/errors"
	"github.com/tianwen-game/tw-account/internal/domain/account/model"
)

type VerificationCodeRepo struct {
	db *gorm.DB
}

func NewVerificationCodeRepo(db *gorm.DB) *VerificationCodeRepo {
	return &VerificationCodeRepo{db: db}
}

func (r *VerificationCodeRepo) Replace(ctx context.Context, c model.VerificationCode) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", c.Email).Delete(&model.VerificationCode{}).Error; err != nil {
			return err
		}
		return tx.Create(&c).Error
	})
	if err != nil {
		return customErrors.WrapInternal(err, "ReplaceVerificationCode")
	}
	return nil
}

func (r *VerificationCodeRepo) Get(ctx context.Context, email string) (model.VerificationCode, error) {
	var c model.VerificationCode
	res := r.db.WithContext(ctx).Where("email = ?", email).First(&c)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.VerificationCode{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.VerificationCode{}, customErrors.WrapInternal(err, "GetVerificationCode")
	}

	return c, nil
}

func (r *VerificationCodeRepo) Delete(ctx context.Context, email string) error {
	res := r.db.WithContext(ctx).Where("email = ?", email).Delete(&model.VerificationCode{})
	if err := res.Error; err != nil {
		return customErrors.WrapInternal(err, "DeleteVerificationCode")
	}
	return nil
}

// Consume is the single atomic match-and-delete step: the row disappears only
// if it still carries exactly this code and has not expired, so of two
// concurrent callers with the correct code at most one sees true.
func (r *VerificationCodeRepo) Consume(ctx context.Context, email, code string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("email = ? AND code = ? AND expires_at > ?", email, code, now.UnixMilli()).
		Delete(&model.VerificationCode{})
	if err := res.Error; err != nil {
		return false, customErrors.WrapInternal(err, "ConsumeVerificationCode")
	}
	return res.RowsAffected == 1, nil
}
