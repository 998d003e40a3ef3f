package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/trimtofit/internal/timeline"
)

// testRepositoryContract exercises the behavior every Repository must share.
func testRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	t.Run("save and find", func(t *testing.T) {
		repo := newRepo(t)
		job := New(KindTrim)
		job.InputPaths = []string{"in.mp3"}
		job.Mode = timeline.ModeRemove
		job.Ranges = []timeline.Range{{Start: 2000, End: 3000}}

		require.NoError(t, repo.Save(ctx, job))

		saved, err := repo.FindByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, saved.ID)
		assert.Equal(t, KindTrim, saved.Kind)
		assert.Equal(t, job.Ranges, saved.Ranges)
		assert.Equal(t, timeline.ModeRemove, saved.Mode)
	})

	t.Run("save updates", func(t *testing.T) {
		repo := newRepo(t)
		job := New(KindTrim)
		require.NoError(t, repo.Save(ctx, job))

		require.NoError(t, job.TransitionTo(StatusLoading))
		job.UpdateProgress(0.3)
		require.NoError(t, repo.Save(ctx, job))

		saved, err := repo.FindByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusLoading, saved.Status)
		assert.Equal(t, 0.3, saved.Progress)
	})

	t.Run("find missing", func(t *testing.T) {
		_, err := newRepo(t).FindByID(ctx, "nonexistent")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("list oldest first", func(t *testing.T) {
		repo := newRepo(t)
		base := time.Now().Add(-time.Hour)
		for i, jobID := range []string{"job-c", "job-a", "job-b"} {
			job := NewWithID(jobID, KindConvert)
			job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
			require.NoError(t, repo.Save(ctx, job))
		}

		jobs, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, jobs, 3)
		assert.Equal(t, "job-c", jobs[0].ID)
		assert.Equal(t, "job-a", jobs[1].ID)
		assert.Equal(t, "job-b", jobs[2].ID)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		job := New(KindMerge)
		require.NoError(t, repo.Save(ctx, job))

		require.NoError(t, repo.Delete(ctx, job.ID))
		_, err := repo.FindByID(ctx, job.ID)
		assert.ErrorIs(t, err, ErrJobNotFound)

		assert.ErrorIs(t, repo.Delete(ctx, job.ID), ErrJobNotFound)
	})
}

func TestMemoryRepository(t *testing.T) {
	testRepositoryContract(t, func(*testing.T) Repository {
		return NewMemoryRepository()
	})
}

func TestMemoryRepository_Isolation(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	job := New(KindTrim)
	job.InputPaths = []string{"in.mp3"}

	require.NoError(t, repo.Save(ctx, job))

	// Modifying the original should not affect the stored copy
	job.InputPaths[0] = "changed.mp3"
	saved, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "in.mp3", saved.InputPaths[0])

	// Modifying the retrieved copy should not affect the stored copy
	saved.Progress = 0.9
	again, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, again.Progress)
}

func TestMemoryRepository_ConcurrentAccess(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job := New(KindTrim)
			_ = repo.Save(ctx, job)
			_, _ = repo.FindByID(ctx, job.ID)
			_, _ = repo.List(ctx)
		}()
	}
	wg.Wait()

	jobs, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 100)
}

func TestMemoryRepository_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryRepository(WithTTL(time.Hour), withClock(func() time.Time { return now }))

	stale := New(KindTrim)
	require.NoError(t, repo.Save(ctx, stale))

	now = now.Add(30 * time.Minute)
	fresh := New(KindSpeed)
	require.NoError(t, repo.Save(ctx, fresh))

	now = now.Add(45 * time.Minute)

	_, err := repo.FindByID(ctx, stale.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	jobs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, fresh.ID, jobs[0].ID)

	assert.ErrorIs(t, repo.Delete(ctx, stale.ID), ErrJobNotFound)

	t.Run("save refreshes expiry", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, fresh))
		now = now.Add(50 * time.Minute)
		_, err := repo.FindByID(ctx, fresh.ID)
		assert.NoError(t, err)
	})
}
