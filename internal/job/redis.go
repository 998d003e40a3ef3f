package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis"
)

// Compile-time check that RedisRepository implements Repository.
var _ Repository = (*RedisRepository)(nil)

const (
	redisKeyPrefix = "trimtofit:job:"
	redisIndexKey  = "trimtofit:jobs"
)

// RedisConfig holds the connection settings for RedisRepository.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL expires finished and unfinished jobs alike. Zero keeps them forever.
	TTL time.Duration
}

// RedisRepository stores jobs as JSON values in Redis, with a set holding
// every known ID.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRepository connects to Redis and verifies the connection.
func NewRedisRepository(cfg RedisConfig) (*RedisRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	return &RedisRepository{client: client, ttl: cfg.TTL}, nil
}

// Close releases the underlying connection pool.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// Save writes the job and adds it to the index.
func (r *RedisRepository) Save(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job.Clone())
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	_, err = r.client.WithContext(ctx).TxPipelined(func(pipe redis.Pipeliner) error {
		pipe.Set(redisKeyPrefix+job.ID, data, r.ttl)
		pipe.SAdd(redisIndexKey, job.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// FindByID loads a job by its ID.
func (r *RedisRepository) FindByID(ctx context.Context, id string) (*Job, error) {
	data, err := r.client.WithContext(ctx).Get(redisKeyPrefix + id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	return decodeJob(data)
}

// List loads every indexed job, oldest first. IDs whose value has expired
// are dropped from the index.
func (r *RedisRepository) List(ctx context.Context) ([]*Job, error) {
	client := r.client.WithContext(ctx)

	ids, err := client.SMembers(redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list job ids: %w", err)
	}
	if len(ids) == 0 {
		return []*Job{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisKeyPrefix + id
	}
	values, err := client.MGet(keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}

	jobs := make([]*Job, 0, len(values))
	var stale []interface{}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		job, err := decodeJob([]byte(s))
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if len(stale) > 0 {
		if err := client.SRem(redisIndexKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("prune job index: %w", err)
		}
	}

	sortByCreation(jobs)
	return jobs, nil
}

// Delete removes a job and its index entry.
func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := r.client.WithContext(ctx).TxPipelined(func(pipe redis.Pipeliner) error {
		del = pipe.Del(redisKeyPrefix + id)
		pipe.SRem(redisIndexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	if del.Val() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func decodeJob(data []byte) (*Job, error) {
	job := &Job{}
	if err := json.Unmarshal(data, job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return job, nil
}
