package legacy

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jimyag/flavord/internal/flavord/entity"
	"github.com/jimyag/flavord/internal/flavord/repository"
	"github.com/jimyag/flavord/internal/flavord/repository/model"
	"github.com/jimyag/flavord/pkg/apierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var adminCtx = entity.RequestContext{IsAdmin: true}

// setupLegacyStore 建一个 legacy 库并用主库仓库播种数据
// 两个库的 schema 相同，播种走 repository 的写路径
func setupLegacyStore(t *testing.T) (Store, repository.FlavorRepository) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	repo, err := repository.New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	store, err := New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store, repository.NewFlavorRepository(repo.DB())
}

func TestLegacyStore(t *testing.T) {
	t.Parallel()

	store, seeder := setupLegacyStore(t)
	ctx := context.Background()

	seed := func(name, flavorID string, memoryMB int, public bool, projects []string) *model.Flavor {
		flavor := &model.Flavor{
			Name:       name,
			FlavorID:   flavorID,
			MemoryMB:   memoryMB,
			VCPUs:      2,
			RootGB:     20,
			RxTxFactor: 1.0,
			IsPublic:   public,
		}
		created, err := seeder.Create(ctx, flavor, map[string]string{"seeded": "yes"}, projects)
		require.NoError(t, err)
		return created
	}

	cell1 := seed("cell.small", "c-small", 1024, true, nil)
	seed("cell.private", "c-private", 2048, false, []string{"project-a"})

	t.Run("Get by internal id", func(t *testing.T) {
		got, err := store.Get(ctx, adminCtx, cell1.ID)
		require.NoError(t, err)
		assert.Equal(t, "c-small", got.FlavorID)
		require.Len(t, got.ExtraSpecs, 1)
	})

	t.Run("GetByName", func(t *testing.T) {
		got, err := store.GetByName(ctx, adminCtx, "cell.small")
		require.NoError(t, err)
		assert.Equal(t, cell1.ID, got.ID)

		_, err = store.GetByName(ctx, adminCtx, "cell.missing")
		assert.ErrorIs(t, err, apierror.ErrFlavorNotFoundByName)
	})

	t.Run("GetByFlavorID respects visibility", func(t *testing.T) {
		_, err := store.GetByFlavorID(ctx, entity.RequestContext{ProjectID: "project-b"},
			"c-private", entity.ReadDeletedNo)
		assert.ErrorIs(t, err, apierror.ErrFlavorNotFound)

		got, err := store.GetByFlavorID(ctx, entity.RequestContext{ProjectID: "project-a"},
			"c-private", entity.ReadDeletedNo)
		require.NoError(t, err)
		assert.Equal(t, "cell.private", got.Name)
	})

	t.Run("GetAll has stable order and no pagination", func(t *testing.T) {
		got, err := store.GetAll(ctx, adminCtx, entity.ListFlavorsOptions{
			// marker 和 limit 由 merger 统一处理，这里应该被忽略
			Marker: "c-small",
			Limit:  1,
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "c-small", got[0].FlavorID)
		assert.Equal(t, "c-private", got[1].FlavorID)
	})

	t.Run("GetAll filters", func(t *testing.T) {
		minMemory := 2000
		got, err := store.GetAll(ctx, adminCtx, entity.ListFlavorsOptions{
			Filters: entity.FlavorFilters{MinMemoryMB: &minMemory},
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "c-private", got[0].FlavorID)
	})

	t.Run("Access round trip", func(t *testing.T) {
		require.NoError(t, store.AccessAdd(ctx, "c-small", "project-z"))

		grants, err := store.AccessGetByFlavorID(ctx, "c-small")
		require.NoError(t, err)
		require.Len(t, grants, 1)
		assert.Equal(t, "project-z", grants[0].ProjectID)

		err = store.AccessAdd(ctx, "c-small", "project-z")
		assert.ErrorIs(t, err, apierror.ErrFlavorAccessExists)

		require.NoError(t, store.AccessRemove(ctx, "c-small", "project-z"))
		err = store.AccessRemove(ctx, "c-small", "project-z")
		assert.ErrorIs(t, err, apierror.ErrFlavorAccessNotFound)
	})

	t.Run("Extra specs round trip", func(t *testing.T) {
		err := store.ExtraSpecsUpdateOrCreate(ctx, "c-small", map[string]string{
			"seeded":  "updated",
			"new_key": "v",
		})
		require.NoError(t, err)

		got, err := store.GetByFlavorID(ctx, adminCtx, "c-small", entity.ReadDeletedNo)
		require.NoError(t, err)
		specs := make(map[string]string, len(got.ExtraSpecs))
		for _, spec := range got.ExtraSpecs {
			specs[spec.Key] = spec.Value
		}
		assert.Equal(t, map[string]string{"seeded": "updated", "new_key": "v"}, specs)

		require.NoError(t, store.ExtraSpecsDelete(ctx, "c-small", "new_key"))
		err = store.ExtraSpecsDelete(ctx, "c-small", "new_key")
		assert.ErrorIs(t, err, apierror.ErrFlavorExtraSpecsNotFound)
	})

	t.Run("Destroy and read_deleted", func(t *testing.T) {
		seed("cell.doomed", "c-doomed", 512, true, nil)
		require.NoError(t, store.Destroy(ctx, "cell.doomed"))

		_, err := store.GetByFlavorID(ctx, adminCtx, "c-doomed", entity.ReadDeletedNo)
		assert.ErrorIs(t, err, apierror.ErrFlavorNotFound)

		got, err := store.GetByFlavorID(ctx, adminCtx, "c-doomed", entity.ReadDeletedYes)
		require.NoError(t, err)
		assert.True(t, got.DeletedAt.Valid)

		deletedOnly, err := store.GetAll(ctx, adminCtx, entity.ListFlavorsOptions{
			ReadDeleted: entity.ReadDeletedOnly,
		})
		require.NoError(t, err)
		require.Len(t, deletedOnly, 1)
		assert.Equal(t, "c-doomed", deletedOnly[0].FlavorID)

		err = store.Destroy(ctx, "cell.doomed")
		assert.ErrorIs(t, err, apierror.ErrFlavorNotFoundByName)
	})
}
