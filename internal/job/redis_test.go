package job

import (
	"os"
	"testing"

	"github.com/go-redis/redis"
	"github.com/stretchr/testify/require"
)

// newTestRedisRepository connects to REDIS_ADDR and flushes the selected
// test database. Tests are skipped when REDIS_ADDR is unset.
func newTestRedisRepository(t *testing.T) Repository {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping redis tests")
	}

	repo, err := NewRedisRepository(RedisConfig{Addr: addr, DB: 15})
	require.NoError(t, err)
	require.NoError(t, repo.client.FlushDB().Err())
	t.Cleanup(func() {
		_ = repo.client.FlushDB().Err()
		_ = repo.Close()
	})
	return repo
}

func TestRedisRepository(t *testing.T) {
	testRepositoryContract(t, newTestRedisRepository)
}

func TestRedisRepository_ListPrunesExpiredIDs(t *testing.T) {
	repo := newTestRedisRepository(t).(*RedisRepository)

	require.NoError(t, repo.client.SAdd(redisIndexKey, "job-gone").Err())

	jobs, err := repo.List(t.Context())
	require.NoError(t, err)
	require.Empty(t, jobs)

	members, err := repo.client.SMembers(redisIndexKey).Result()
	require.NoError(t, err)
	require.NotContains(t, members, "job-gone")
}

func TestNewRedisRepository_Unreachable(t *testing.T) {
	_, err := NewRedisRepository(RedisConfig{Addr: "127.0.0.1:1"})
	require.Error(t, err)
	require.NotErrorIs(t, err, redis.Nil)
}
