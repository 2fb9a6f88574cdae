package refresh_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	redisrepo "github.com/tianwen-game/tw-account/internal/adapters/db/redis"
	"github.com/tianwen-game/tw-account/internal/app/account/refresh"
	customErrors "github.com/tianwen-game/tw-account/internal/domain/account/errors"
)

func newManager(t *testing.T, ttl time.Duration) (*refresh.Manager, *redisrepo.RefreshTokenRepo) {
	mr := miniredis.RunT(t)
	t.Cleanup(mr.Close)

	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	repo := redisrepo.NewRefreshTokenRepo(client)
	return refresh.NewManager(repo, ttl), repo
}

func TestManager_IssueShape(t *testing.T) {
	m, _ := newManager(t, time.Hour)

	raw, rec, err := m.Issue(context.Background(), uuid.New(), time.Now())
	require.NoError(t, err)
	require.Len(t, raw, refresh.TokenLength)
	require.Equal(t, byte('.'), raw[36])
	require.Equal(t, 1, strings.Count(raw, "."))

	lookup, err := uuid.Parse(raw[:36])
	require.NoError(t, err)
	require.Equal(t, rec.LookupID, lookup)
	require.Len(t, rec.Secret, 64)
}

func TestManager_RotateInvalidatesOldString(t *testing.T) {
	m, _ := newManager(t, time.Hour)
	ctx := context.Background()
	owner := uuid.New()

	raw, _, err := m.Issue(ctx, owner, time.Now())
	require.NoError(t, err)

	next, rec, err := m.ValidateAndRotate(ctx, raw, time.Now())
	require.NoError(t, err)
	require.NotEqual(t, raw, next)
	require.Equal(t, owner, rec.OwnerID)

	// the superseded string must never authenticate again
	_, _, err = m.ValidateAndRotate(ctx, raw, time.Now())
	require.True(t, customErrors.IsInvalidToken(err), "got %v", err)

	// the successor keeps working
	_, _, err = m.ValidateAndRotate(ctx, next, time.Now())
	require.NoError(t, err)
}

func TestManager_RotationKeepsExpiry(t *testing.T) {
	m, _ := newManager(t, time.Hour)
	ctx := context.Background()
	now := time.Now()

	raw, issued, err := m.Issue(ctx, uuid.New(), now)
	require.NoError(t, err)

	_, rotated, err := m.ValidateAndRotate(ctx, raw, now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, issued.ExpiresAt.UnixMilli(), rotated.ExpiresAt.UnixMilli(),
		"rotation must not extend the session ceiling")
}

func TestManager_MalformedRejectedBeforeStorage(t *testing.T) {
	m, _ := newManager(t, time.Hour)
	ctx := context.Background()
	now := time.Now()

	valid, _, err := m.Issue(ctx, uuid.New(), now)
	require.NoError(t, err)

	cases := []string{
		"",
		"short",
		strings.Repeat("a", refresh.TokenLength),                   // no separator
		"not-a-uuid-but-36-characters-long!!!" + valid[36:],        // bad uuid prefix
		valid[:36] + "." + strings.Repeat("x", 31) + "." + valid[69:101], // second separator
		valid + "a", // wrong length
	}
	for _, c := range cases {
		_, _, err := m.ValidateAndRotate(ctx, c, now)
		require.True(t, customErrors.IsInvalidToken(err), "input %q: got %v", c, err)
	}
}

func TestManager_WrongSecret(t *testing.T) {
	m, _ := newManager(t, time.Hour)
	ctx := context.Background()
	now := time.Now()

	raw, _, err := m.Issue(ctx, uuid.New(), now)
	require.NoError(t, err)

	forged := raw[:37] + strings.Repeat("0", 64)
	_, _, err = m.ValidateAndRotate(ctx, forged, now)
	require.True(t, customErrors.IsInvalidToken(err), "got %v", err)

	// true secret still valid after the failed guess
	_, _, err = m.ValidateAndRotate(ctx, raw, now)
	require.NoError(t, err)
}

func TestManager_ExpiredDeleted(t *testing.T) {
	m, repo := newManager(t, time.Hour)
	ctx := context.Background()
	now := time.Now()

	raw, rec, err := m.Issue(ctx, uuid.New(), now)
	require.NoError(t, err)

	_, _, err = m.ValidateAndRotate(ctx, raw, now.Add(2*time.Hour))
	require.True(t, customErrors.IsInvalidToken(err), "got %v", err)

	// finding the token expired removes the record as a side effect
	_, err = repo.Get(ctx, rec.LookupID)
	require.True(t, customErrors.IsNotFound(err), "got %v", err)
}
