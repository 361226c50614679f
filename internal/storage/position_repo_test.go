package storage

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxelgate/internal/vec"
)

// TestMemoryPositionRepo тестирует in-memory репозиторий позиций
func TestMemoryPositionRepo(t *testing.T) {
	repo := NewMemoryPositionRepo()
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		id := uuid.New()
		expected := PlayerPose{Position: vec.Vec3Float{X: 10.5, Y: -60, Z: 3}, Yaw: 90, Pitch: -10}

		require.NoError(t, repo.Save(ctx, id, expected))

		actual, found, err := repo.Load(ctx, id)
		require.NoError(t, err)
		require.True(t, found, "позиция не найдена")
		assert.Equal(t, expected, actual)
	})

	t.Run("Load Non-Existent Player", func(t *testing.T) {
		pose, found, err := repo.Load(ctx, uuid.New())
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, PlayerPose{}, pose)
	})

	t.Run("Delete Position", func(t *testing.T) {
		id := uuid.New()
		require.NoError(t, repo.Save(ctx, id, PlayerPose{}))
		require.NoError(t, repo.Delete(ctx, id))
		_, found, _ := repo.Load(ctx, id)
		assert.False(t, found)
		assert.Error(t, repo.Delete(ctx, id), "повторное удаление")
	})

	t.Run("Validation", func(t *testing.T) {
		assert.Error(t, repo.Save(ctx, uuid.Nil, PlayerPose{}))
		assert.Error(t, repo.Save(ctx, uuid.New(), PlayerPose{Position: vec.Vec3Float{X: math.NaN()}}))
		assert.Error(t, repo.Save(ctx, uuid.New(), PlayerPose{Position: vec.Vec3Float{Y: math.Inf(1)}}))
	})

	t.Run("Context Cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, repo.Save(cctx, uuid.New(), PlayerPose{}), context.Canceled)
		_, _, err := repo.Load(cctx, uuid.New())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestConcurrentAccess(t *testing.T) {
	repo := NewMemoryPositionRepo()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := uuid.New()
			pose := PlayerPose{Position: vec.Vec3Float{X: float64(i)}}
			assert.NoError(t, repo.Save(ctx, id, pose))
			got, found, err := repo.Load(ctx, id)
			assert.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, pose, got)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, repo.Count())
}
