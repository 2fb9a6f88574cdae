package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	customErrors "github.com/tianwen-game/tw-account/internal/domain/account/errors"
	"github.com/tianwen-game/tw-account/internal/domain/account/model"
)

const keyPrefix = "refresh:"

// rotateScript re-checks the secret and re-keys the record in one atomic
// step, so two concurrent rotations of the same token cannot both succeed.
var rotateScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "secret") ~= ARGV[1] then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("HSET", KEYS[2], "secret", ARGV[2], "owner_id", ARGV[3], "expires_at", ARGV[4])
redis.call("PEXPIRE", KEYS[2], ARGV[5])
return 1
`)

type RefreshTokenRepo struct {
	client *redis.Client
}

func NewRefreshTokenRepo(client *redis.Client) *RefreshTokenRepo {
	return &RefreshTokenRepo{
		client: client,
	}
}

func (r *RefreshTokenRepo) Store(ctx context.Context, t model.RefreshToken) error {
	key := keyPrefix + t.LookupID.String()
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key,
		"secret", t.Secret,
		"owner_id", t.OwnerID.String(),
		"expires_at", t.ExpiresAt.UnixMilli(),
	)
	pipe.PExpire(ctx, key, safeTTL(t.ExpiresAt))
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RefreshTokenRepo) Get(ctx context.Context, lookupID uuid.UUID) (model.RefreshToken, error) {
	vals, err := r.client.HGetAll(ctx, keyPrefix+lookupID.String()).Result()
	if err != nil {
		return model.RefreshToken{}, err
	}
	if len(vals) == 0 {
		return model.RefreshToken{}, customErrors.ErrNotFound
	}

	ownerID, err := uuid.Parse(vals["owner_id"])
	if err != nil {
		return model.RefreshToken{}, customErrors.WrapInternal(err, "parse owner_id")
	}
	expMilli, err := strconv.ParseInt(vals["expires_at"], 10, 64)
	if err != nil {
		return model.RefreshToken{}, customErrors.WrapInternal(err, "parse expires_at")
	}

	return model.RefreshToken{
		LookupID:  lookupID,
		Secret:    vals["secret"],
		OwnerID:   ownerID,
		ExpiresAt: time.UnixMilli(expMilli),
	}, nil
}

func (r *RefreshTokenRepo) Delete(ctx context.Context, lookupID uuid.UUID) error {
	return r.client.Del(ctx, keyPrefix+lookupID.String()).Err()
}

func (r *RefreshTokenRepo) Rotate(ctx context.Context, oldLookupID uuid.UUID, oldSecret string, next model.RefreshToken) (bool, error) {
	n, err := rotateScript.Run(ctx, r.client,
		[]string{keyPrefix + oldLookupID.String(), keyPrefix + next.LookupID.String()},
		oldSecret,
		next.Secret,
		next.OwnerID.String(),
		next.ExpiresAt.UnixMilli(),
		safeTTL(next.ExpiresAt).Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func safeTTL(exp time.Time) time.Duration {
	ttl := time.Until(exp)
	if ttl <= 0 {
		// minimal TTL so the key still disappears
		return time.Second
	}
	return ttl
}
