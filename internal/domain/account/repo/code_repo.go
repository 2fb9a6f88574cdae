package repo

import (
	"context"
	"time"

	"github.com/tianwen-game/tw-account/internal/domain/account/model"
)

type VerificationCodeRepo interface {
	// Replace removes any live code for the email and stores the new one.
	Replace(ctx context.Context, c model.VerificationCode) error

	Get(ctx context.Context, email string) (model.VerificationCode, error)

	Delete(ctx context.Context, email string) error

	// Consume deletes the record only when email, code and freshness all
	// match, in a single conditional statement. Returns whether a row was
	// removed, so two concurrent consumers cannot both succeed.
	Consume(ctx context.Context, email, code string, now time.Time) (bool, error)
}
