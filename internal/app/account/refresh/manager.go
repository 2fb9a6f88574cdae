package refresh

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	customErrors "github.com/tianwen-game/tw-account/internal/domain/account/errors"
	"github.com/tianwen-game/tw-account/internal/domain/account/model"
	"github.com/tianwen-game/tw-account/internal/domain/account/repo"
)

const (
	lookupIDLength = 36 // canonical UUID text
	secretLength   = 64 // 32 random bytes, hex encoded

	// TokenLength is the fixed size of every issued token string:
	// "<lookup_id>.<secret>".
	TokenLength = lookupIDLength + 1 + secretLength
)

// Manager issues and rotates stateful refresh tokens. The public lookup id is
// the only value ever used as a storage key; the secret is compared in
// constant time after retrieval.
type Manager struct {
	tokens repo.RefreshTokenRepo
	ttl    time.Duration
}

func NewManager(tokens repo.RefreshTokenRepo, ttl time.Duration) *Manager {
	return &Manager{tokens: tokens, ttl: ttl}
}

func (m *Manager) Issue(ctx context.Context, ownerID uuid.UUID, now time.Time) (string, model.RefreshToken, error) {
	secret, err := newSecret()
	if err != nil {
		return "", model.RefreshToken{}, customErrors.WrapInternal(err, "generate refresh secret")
	}

	rec := model.RefreshToken{
		LookupID:  uuid.New(),
		Secret:    secret,
		OwnerID:   ownerID,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.tokens.Store(ctx, rec); err != nil {
		return "", model.RefreshToken{}, customErrors.WrapInternal(err, "store refresh token")
	}

	return compose(rec), rec, nil
}

// ValidateAndRotate authenticates raw and replaces the record's credential
// material in place, returning the successor token. The old string stops
// authenticating the moment rotation succeeds. Expiry is anchored at issuance
// and never extended, so a session has a hard ceiling.
func (m *Manager) ValidateAndRotate(ctx context.Context, raw string, now time.Time) (string, model.RefreshToken, error) {
	lookupID, secret, err := split(raw)
	if err != nil {
		// malformed input is rejected before any storage access
		return "", model.RefreshToken{}, err
	}

	rec, err := m.tokens.Get(ctx, lookupID)
	if customErrors.IsNotFound(err) {
		return "", model.RefreshToken{}, customErrors.ErrInvalidToken
	}
	if err != nil {
		return "", model.RefreshToken{}, customErrors.WrapInternal(err, "get refresh token")
	}

	if subtle.ConstantTimeCompare([]byte(rec.Secret), []byte(secret)) != 1 {
		return "", model.RefreshToken{}, customErrors.ErrInvalidToken
	}

	if now.After(rec.ExpiresAt) {
		_ = m.tokens.Delete(ctx, rec.LookupID)
		return "", model.RefreshToken{}, customErrors.ErrInvalidToken
	}

	nextSecret, err := newSecret()
	if err != nil {
		return "", model.RefreshToken{}, customErrors.WrapInternal(err, "generate refresh secret")
	}
	next := model.RefreshToken{
		LookupID:  uuid.New(),
		Secret:    nextSecret,
		OwnerID:   rec.OwnerID,
		ExpiresAt: rec.ExpiresAt,
	}

	ok, err := m.tokens.Rotate(ctx, rec.LookupID, secret, next)
	if err != nil {
		return "", model.RefreshToken{}, customErrors.WrapInternal(err, "rotate refresh token")
	}
	if !ok {
		// a concurrent caller won the rotation
		return "", model.RefreshToken{}, customErrors.ErrInvalidToken
	}

	return compose(next), next, nil
}

func compose(t model.RefreshToken) string {
	return t.LookupID.String() + "." + t.Secret
}

func split(raw string) (uuid.UUID, string, error) {
	if len(raw) != TokenLength || raw[lookupIDLength] != '.' {
		return uuid.Nil, "", customErrors.ErrInvalidToken
	}
	secret := raw[lookupIDLength+1:]
	if strings.Contains(secret, ".") {
		return uuid.Nil, "", customErrors.ErrInvalidToken
	}
	lookupID, err := uuid.Parse(raw[:lookupIDLength])
	if err != nil {
		return uuid.Nil, "", customErrors.ErrInvalidToken
	}
	return lookupID, secret, nil
}

func newSecret() (string, error) {
	buf := make([]byte, secretLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
