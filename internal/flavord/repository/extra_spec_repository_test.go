package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jimyag/flavord/pkg/apierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestExtraSpecRepository(t *testing.T) {
	t.Parallel()

	repo := setupTestDB(t)
	flavorRepo := NewFlavorRepository(repo.DB())
	specRepo := NewExtraSpecRepository(repo.DB())
	ctx := context.Background()

	_, err := flavorRepo.Create(ctx, newTestFlavor("m1.specs", "f-specs", 1024),
		map[string]string{"hw:cpu_policy": "shared"}, nil)
	require.NoError(t, err)

	t.Run("Get", func(t *testing.T) {
		specs, err := specRepo.Get(ctx, "f-specs")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"hw:cpu_policy": "shared"}, specs)
	})

	t.Run("Upsert inserts and updates", func(t *testing.T) {
		err := specRepo.Upsert(ctx, "f-specs", map[string]string{
			"hw:cpu_policy": "dedicated", // 已存在，更新
			"hw:numa_nodes": "2",         // 新增
		}, DefaultExtraSpecRetries)
		require.NoError(t, err)

		specs, err := specRepo.Get(ctx, "f-specs")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"hw:cpu_policy": "dedicated",
			"hw:numa_nodes": "2",
		}, specs)
	})

	t.Run("Delete", func(t *testing.T) {
		err := specRepo.Delete(ctx, "f-specs", "hw:numa_nodes")
		require.NoError(t, err)

		specs, err := specRepo.Get(ctx, "f-specs")
		require.NoError(t, err)
		assert.NotContains(t, specs, "hw:numa_nodes")
	})

	t.Run("Delete missing key", func(t *testing.T) {
		err := specRepo.Delete(ctx, "f-specs", "no-such-key")
		assert.ErrorIs(t, err, apierror.ErrFlavorExtraSpecsNotFound)
	})

	t.Run("Unknown flavor", func(t *testing.T) {
		_, err := specRepo.Get(ctx, "f-ghost")
		assert.ErrorIs(t, err, apierror.ErrFlavorNotFound)

		err = specRepo.Upsert(ctx, "f-ghost", map[string]string{"k": "v"}, DefaultExtraSpecRetries)
		assert.ErrorIs(t, err, apierror.ErrFlavorNotFound)

		err = specRepo.Delete(ctx, "f-ghost", "k")
		assert.ErrorIs(t, err, apierror.ErrFlavorNotFound)
	})
}

func TestRetryOnDuplicate(t *testing.T) {
	t.Parallel()

	t.Run("Success on first attempt", func(t *testing.T) {
		calls := 0
		err := RetryOnDuplicate(5, func() error {
			calls++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("Retries only on duplicate key", func(t *testing.T) {
		calls := 0
		err := RetryOnDuplicate(5, func() error {
			calls++
			if calls < 3 {
				return gorm.ErrDuplicatedKey
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("Other errors are not retried", func(t *testing.T) {
		sentinel := errors.New("boom")
		calls := 0
		err := RetryOnDuplicate(5, func() error {
			calls++
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, calls)
	})

	t.Run("Exhaustion returns update failed", func(t *testing.T) {
		calls := 0
		err := RetryOnDuplicate(4, func() error {
			calls++
			return gorm.ErrDuplicatedKey
		})
		assert.ErrorIs(t, err, apierror.ErrFlavorExtraSpecUpdateFailed)
		assert.Equal(t, 4, calls)
	})
}

func TestAccessRepository(t *testing.T) {
	t.Parallel()

	repo := setupTestDB(t)
	flavorRepo := NewFlavorRepository(repo.DB())
	accessRepo := NewAccessRepository(repo.DB())
	ctx := context.Background()

	private := newTestFlavor("m1.access", "f-access", 1024)
	private.IsPublic = false
	_, err := flavorRepo.Create(ctx, private, nil, nil)
	require.NoError(t, err)

	t.Run("Add and Get", func(t *testing.T) {
		require.NoError(t, accessRepo.Add(ctx, "f-access", "project-a"))
		require.NoError(t, accessRepo.Add(ctx, "f-access", "project-b"))

		grants, err := accessRepo.Get(ctx, "f-access")
		require.NoError(t, err)
		require.Len(t, grants, 2)
		assert.Equal(t, "project-a", grants[0].ProjectID)
		assert.Equal(t, "project-b", grants[1].ProjectID)
	})

	t.Run("Duplicate grant", func(t *testing.T) {
		err := accessRepo.Add(ctx, "f-access", "project-a")
		assert.ErrorIs(t, err, apierror.ErrFlavorAccessExists)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, accessRepo.Remove(ctx, "f-access", "project-b"))

		grants, err := accessRepo.Get(ctx, "f-access")
		require.NoError(t, err)
		require.Len(t, grants, 1)
		assert.Equal(t, "project-a", grants[0].ProjectID)
	})

	t.Run("Remove missing grant", func(t *testing.T) {
		err := accessRepo.Remove(ctx, "f-access", "project-z")
		assert.ErrorIs(t, err, apierror.ErrFlavorAccessNotFound)
	})

	t.Run("Unknown flavor", func(t *testing.T) {
		err := accessRepo.Add(ctx, "f-ghost", "project-a")
		assert.ErrorIs(t, err, apierror.ErrFlavorNotFound)
	})
}
