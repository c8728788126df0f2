package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jimyag/flavord/internal/flavord/entity"
	"github.com/jimyag/flavord/internal/flavord/repository/model"
	"github.com/jimyag/flavord/pkg/apierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	repo, err := New(dbPath)
	require.NoError(t, err)

	// 使用 t.Cleanup 确保在测试真正结束时清理，支持并发测试
	t.Cleanup(func() {
		_ = repo.Close()
		_ = os.RemoveAll(tmpDir)
	})

	return repo
}

// newTestFlavor 构造一个最小可用的 flavor 模型
func newTestFlavor(name, flavorID string, memoryMB int) *model.Flavor {
	return &model.Flavor{
		Name:       name,
		FlavorID:   flavorID,
		MemoryMB:   memoryMB,
		VCPUs:      2,
		RootGB:     20,
		RxTxFactor: 1.0,
		IsPublic:   true,
	}
}

var adminCtx = entity.RequestContext{IsAdmin: true}

func TestFlavorRepository(t *testing.T) {
	t.Parallel()

	repo := setupTestDB(t)
	flavorRepo := NewFlavorRepository(repo.DB())
	ctx := context.Background()

	t.Run("Create and Get", func(t *testing.T) {
		created, err := flavorRepo.Create(ctx, newTestFlavor("m1.small", "f-small", 2048),
			map[string]string{"hw:cpu_policy": "shared"}, nil)
		require.NoError(t, err)
		assert.NotZero(t, created.ID)

		got, err := flavorRepo.GetByFlavorID(ctx, adminCtx, "f-small", entity.ReadDeletedNo)
		require.NoError(t, err)
		assert.Equal(t, "m1.small", got.Name)
		assert.Equal(t, 2048, got.MemoryMB)
		require.Len(t, got.ExtraSpecs, 1)
		assert.Equal(t, "hw:cpu_policy", got.ExtraSpecs[0].Key)

		byName, err := flavorRepo.GetByName(ctx, adminCtx, "m1.small")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byName.ID)

		byID, err := flavorRepo.GetByID(ctx, adminCtx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "f-small", byID.FlavorID)
	})

	t.Run("Get not found", func(t *testing.T) {
		_, err := flavorRepo.GetByFlavorID(ctx, adminCtx, "f-nope", entity.ReadDeletedNo)
		assert.ErrorIs(t, err, apierror.ErrFlavorNotFound)

		_, err = flavorRepo.GetByName(ctx, adminCtx, "no-such-name")
		assert.ErrorIs(t, err, apierror.ErrFlavorNotFoundByName)
	})

	t.Run("Duplicate flavorid", func(t *testing.T) {
		_, err := flavorRepo.Create(ctx, newTestFlavor("m1.dup-a", "f-dup", 1024), nil, nil)
		require.NoError(t, err)

		_, err = flavorRepo.Create(ctx, newTestFlavor("m1.dup-b", "f-dup", 1024), nil, nil)
		assert.ErrorIs(t, err, apierror.ErrFlavorIDExists)
	})

	t.Run("Duplicate name", func(t *testing.T) {
		_, err := flavorRepo.Create(ctx, newTestFlavor("m1.same-name", "f-name-a", 1024), nil, nil)
		require.NoError(t, err)

		_, err = flavorRepo.Create(ctx, newTestFlavor("m1.same-name", "f-name-b", 1024), nil, nil)
		assert.ErrorIs(t, err, apierror.ErrFlavorExists)
	})

	t.Run("Visibility for non-admin", func(t *testing.T) {
		private := newTestFlavor("m1.private", "f-private", 4096)
		private.IsPublic = false
		_, err := flavorRepo.Create(ctx, private, nil, []string{"project-a"})
		require.NoError(t, err)

		// 被授权的项目可以看到
		granted := entity.RequestContext{ProjectID: "project-a"}
		got, err := flavorRepo.GetByFlavorID(ctx, granted, "f-private", entity.ReadDeletedNo)
		require.NoError(t, err)
		assert.Equal(t, "m1.private", got.Name)

		// 未授权的项目看不到
		other := entity.RequestContext{ProjectID: "project-b"}
		_, err = flavorRepo.GetByFlavorID(ctx, other, "f-private", entity.ReadDeletedNo)
		assert.ErrorIs(t, err, apierror.ErrFlavorNotFound)

		// 管理员总能看到
		_, err = flavorRepo.GetByFlavorID(ctx, adminCtx, "f-private", entity.ReadDeletedNo)
		assert.NoError(t, err)
	})

	t.Run("Destroy cascades and allows recreation", func(t *testing.T) {
		created, err := flavorRepo.Create(ctx, newTestFlavor("m1.doomed", "f-doomed", 512),
			map[string]string{"quota:disk_read_mbs": "100"}, []string{"project-a"})
		require.NoError(t, err)

		err = flavorRepo.Destroy(ctx, "m1.doomed")
		require.NoError(t, err)

		// 默认读不到已删除的记录
		_, err = flavorRepo.GetByFlavorID(ctx, adminCtx, "f-doomed", entity.ReadDeletedNo)
		assert.ErrorIs(t, err, apierror.ErrFlavorNotFound)

		// read_deleted=yes 能读到，且带软删除标记
		got, err := flavorRepo.GetByFlavorID(ctx, adminCtx, "f-doomed", entity.ReadDeletedYes)
		require.NoError(t, err)
		assert.True(t, got.DeletedAt.Valid)
		assert.Equal(t, created.ID, got.ID)

		// 级联的 extra specs 也被软删除
		var liveSpecs int64
		require.NoError(t, repo.DB().Model(&model.FlavorExtraSpec{}).
			Where("flavor_id = ?", created.ID).Count(&liveSpecs).Error)
		assert.Zero(t, liveSpecs)

		// 同名同 flavorid 可以重建
		recreated, err := flavorRepo.Create(ctx, newTestFlavor("m1.doomed", "f-doomed", 512), nil, nil)
		require.NoError(t, err)
		assert.NotEqual(t, created.ID, recreated.ID)

		// 未删除的记录优先于同 flavorid 的已删除记录
		got, err = flavorRepo.GetByFlavorID(ctx, adminCtx, "f-doomed", entity.ReadDeletedYes)
		require.NoError(t, err)
		assert.Equal(t, recreated.ID, got.ID)
		assert.False(t, got.DeletedAt.Valid)

		// read_deleted=only 只读已删除的记录
		got, err = flavorRepo.GetByFlavorID(ctx, adminCtx, "f-doomed", entity.ReadDeletedOnly)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.True(t, got.DeletedAt.Valid)
	})

	t.Run("Destroy not found", func(t *testing.T) {
		err := flavorRepo.Destroy(ctx, "never-existed")
		assert.ErrorIs(t, err, apierror.ErrFlavorNotFoundByName)
	})
}

func TestFlavorRepositoryList(t *testing.T) {
	t.Parallel()

	repo := setupTestDB(t)
	flavorRepo := NewFlavorRepository(repo.DB())
	ctx := context.Background()

	// 内存从 100 到 600，偶数序号禁用
	names := []string{"l1", "l2", "l3", "l4", "l5", "l6"}
	for i, name := range names {
		flavor := newTestFlavor(name, "fl-"+name, (i+1)*100)
		flavor.RootGB = (i + 1) * 10
		flavor.Disabled = i%2 == 1
		_, err := flavorRepo.Create(ctx, flavor, nil, nil)
		require.NoError(t, err)
	}

	t.Run("Default sort by flavorid asc", func(t *testing.T) {
		got, err := flavorRepo.List(ctx, adminCtx, entity.ListFlavorsOptions{})
		require.NoError(t, err)
		require.Len(t, got, 6)
		for i, name := range names {
			assert.Equal(t, "fl-"+name, got[i].FlavorID)
		}
	})

	t.Run("Filters are conjunctive", func(t *testing.T) {
		minMemory := 300
		disabled := false
		got, err := flavorRepo.List(ctx, adminCtx, entity.ListFlavorsOptions{
			Filters: entity.FlavorFilters{MinMemoryMB: &minMemory, Disabled: &disabled},
		})
		require.NoError(t, err)
		// 内存 >= 300 且未禁用：l3, l5
		require.Len(t, got, 2)
		assert.Equal(t, "fl-l3", got[0].FlavorID)
		assert.Equal(t, "fl-l5", got[1].FlavorID)
	})

	t.Run("Sort by memory desc", func(t *testing.T) {
		got, err := flavorRepo.List(ctx, adminCtx, entity.ListFlavorsOptions{
			SortKey: "memory_mb",
			SortDir: entity.SortDesc,
		})
		require.NoError(t, err)
		require.Len(t, got, 6)
		assert.Equal(t, 600, got[0].MemoryMB)
		assert.Equal(t, 100, got[5].MemoryMB)
	})

	t.Run("Keyset pagination", func(t *testing.T) {
		page1, err := flavorRepo.List(ctx, adminCtx, entity.ListFlavorsOptions{Limit: 2})
		require.NoError(t, err)
		require.Len(t, page1, 2)
		assert.Equal(t, "fl-l1", page1[0].FlavorID)
		assert.Equal(t, "fl-l2", page1[1].FlavorID)

		page2, err := flavorRepo.List(ctx, adminCtx, entity.ListFlavorsOptions{
			Limit:  2,
			Marker: page1[1].FlavorID,
		})
		require.NoError(t, err)
		require.Len(t, page2, 2)
		assert.Equal(t, "fl-l3", page2[0].FlavorID)
		assert.Equal(t, "fl-l4", page2[1].FlavorID)
	})

	t.Run("Marker not found", func(t *testing.T) {
		_, err := flavorRepo.List(ctx, adminCtx, entity.ListFlavorsOptions{Marker: "fl-missing"})
		assert.ErrorIs(t, err, apierror.ErrMarkerNotFound)
	})

	t.Run("Invalid sort key", func(t *testing.T) {
		_, err := flavorRepo.List(ctx, adminCtx, entity.ListFlavorsOptions{SortKey: "memory_mb; DROP TABLE flavors"})
		assert.ErrorIs(t, err, apierror.ErrInvalidParameter)
	})

	t.Run("IsPublic filter includes granted flavors", func(t *testing.T) {
		private := newTestFlavor("l-private", "fl-private", 50)
		private.IsPublic = false
		_, err := flavorRepo.Create(ctx, private, nil, []string{"project-x"})
		require.NoError(t, err)

		isPublic := true
		rctx := entity.RequestContext{ProjectID: "project-x"}
		got, err := flavorRepo.List(ctx, rctx, entity.ListFlavorsOptions{
			Filters: entity.FlavorFilters{IsPublic: &isPublic},
		})
		require.NoError(t, err)
		// 公开的 6 条加上被授权的私有规格
		require.Len(t, got, 7)
	})
}
