package code

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	customErrors "github.com/tianwen-game/tw-account/internal/domain/account/errors"
	"github.com/tianwen-game/tw-account/internal/domain/account/model"
	"github.com/tianwen-game/tw-account/internal/domain/account/repo"
)

// Length of every issued verification code.
const Length = 6

// DefaultAlphabet omits 0, I, O and l to keep codes unambiguous when typed.
const DefaultAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// Store issues and destructively consumes one-time email verification codes.
// At most one code is live per email; issuing replaces the previous record.
type Store struct {
	codes    repo.VerificationCodeRepo
	alphabet string
	lifespan time.Duration
}

func NewStore(codes repo.VerificationCodeRepo, alphabet string, lifespan time.Duration) *Store {
	if alphabet == "" {
		alphabet = DefaultAlphabet
	}
	return &Store{codes: codes, alphabet: alphabet, lifespan: lifespan}
}

func (s *Store) Lifespan() time.Duration { return s.lifespan }

func (s *Store) Issue(ctx context.Context, email string) (string, error) {
	generated, err := s.generate()
	if err != nil {
		return "", customErrors.WrapInternal(err, "generate code")
	}

	rec := model.VerificationCode{
		Email:     email,
		Code:      generated,
		ExpiresAt: time.Now().Add(s.lifespan).UnixMilli(),
	}
	if err := s.codes.Replace(ctx, rec); err != nil {
		return "", err
	}
	return generated, nil
}

// VerifyAndConsume reports whether submitted matches the live code for email
// and removes the record on a match. An expired record is deleted and counts
// as a miss; a wrong guess leaves the record intact. The final match-and-
// delete is one conditional statement in the repo, so a correct code is
// accepted at most once even under concurrent calls.
func (s *Store) VerifyAndConsume(ctx context.Context, email, submitted string) (bool, error) {
	now := time.Now()

	rec, err := s.codes.Get(ctx, email)
	if customErrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if rec.Expired(now) {
		if err := s.codes.Delete(ctx, email); err != nil {
			return false, err
		}
		return false, nil
	}

	return s.codes.Consume(ctx, email, submitted, now)
}

func (s *Store) generate() (string, error) {
	buf := make([]byte, Length)
	max := big.NewInt(int64(len(s.alphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = s.alphabet[n.Int64()]
	}
	return string(buf), nil
}
