package service

import (
	"context"
	"errors"
	"sort"

	"github.com/jimyag/flavord/internal/flavord/entity"
	"github.com/jimyag/flavord/internal/flavord/legacy"
	"github.com/jimyag/flavord/internal/flavord/repository"
	"github.com/jimyag/flavord/internal/flavord/repository/model"
	"github.com/jimyag/flavord/pkg/apierror"
	"github.com/jimyag/flavord/pkg/idgen"
	"github.com/rs/zerolog"
)

// FlavorService flavor 服务
//
// 读路径同时覆盖主库和 legacy 库：列表按 flavorid 合并去重（主库优先），
// 按业务主键的单条读取在主库未命中时回落到 legacy 库并顺带把记录迁移进主库。
// legacyStore 为 nil 表示迁移已完成，只走主库。
type FlavorService struct {
	flavors     repository.FlavorRepository
	specs       repository.ExtraSpecRepository
	access      repository.AccessRepository
	legacyStore legacy.Store
	idGen       *idgen.Generator
}

// NewFlavorService 创建 flavor 服务
func NewFlavorService(repo *repository.Repository, legacyStore legacy.Store) *FlavorService {
	db := repo.DB()
	return &FlavorService{
		flavors:     repository.NewFlavorRepository(db),
		specs:       repository.NewExtraSpecRepository(db),
		access:      repository.NewAccessRepository(db),
		legacyStore: legacyStore,
		idGen:       idgen.New(),
	}
}

// sourcedFlavor 合并视图里的一条记录，带来源库标记
type sourcedFlavor struct {
	model  *model.Flavor
	source entity.FlavorSource
}

// Create 创建 flavor
// flavorid 未指定时自动生成，extra specs 和授权与 flavor 行写在同一事务
func (s *FlavorService) Create(ctx context.Context, req *entity.CreateFlavorRequest) (*entity.Flavor, error) {
	logger := zerolog.Ctx(ctx)

	if err := req.IsValid(); err != nil {
		return nil, err
	}

	flavor := flavorRequestToModel(req)
	if flavor.FlavorID == "" {
		flavorID, err := s.idGen.GenerateFlavorID()
		if err != nil {
			logger.Error().Err(err).Msg("Failed to generate flavor ID")
			return nil, apierror.WrapError(apierror.ErrInternalError, "Failed to generate flavor ID", err)
		}
		flavor.FlavorID = flavorID
	}

	created, err := s.flavors.Create(ctx, flavor, req.ExtraSpecs, req.Projects)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("flavorid", created.FlavorID).
		Str("name", created.Name).
		Msg("Flavor created")

	return s.finishGet(ctx, created, entity.SourcePrimary)
}

// GetByID 按内部主键查询，主库未命中时回落到 legacy 库
// 内部主键是库内局部的，这条路径不触发迁移
func (s *FlavorService) GetByID(ctx context.Context, rctx entity.RequestContext, id uint) (*entity.Flavor, error) {
	flavor, err := s.flavors.GetByID(ctx, rctx, id)
	if err == nil {
		return s.finishGet(ctx, flavor, entity.SourcePrimary)
	}
	if s.legacyStore == nil || !errors.Is(err, apierror.ErrFlavorNotFound) {
		return nil, err
	}
	legacyRow, err := s.legacyStore.Get(ctx, rctx, id)
	if err != nil {
		return nil, err
	}
	return s.finishGet(ctx, legacyRow, entity.SourceLegacy)
}

// GetByName 按名称查询，主库未命中时回落到 legacy 库
func (s *FlavorService) GetByName(ctx context.Context, rctx entity.RequestContext, name string) (*entity.Flavor, error) {
	flavor, err := s.flavors.GetByName(ctx, rctx, name)
	if err == nil {
		return s.finishGet(ctx, flavor, entity.SourcePrimary)
	}
	if s.legacyStore == nil || !errors.Is(err, apierror.ErrFlavorNotFoundByName) {
		return nil, err
	}
	legacyRow, err := s.legacyStore.GetByName(ctx, rctx, name)
	if err != nil {
		return nil, err
	}
	return s.finishGet(ctx, legacyRow, entity.SourceLegacy)
}

// GetByFlavorID 按业务主键查询
//
// 主库未命中且 legacy 库命中时，顺带把记录（字段值 + 访问授权，
// 不含内部主键）复制进主库。这是一次由读触发的单向懒迁移：
// 后续读取直接命中主库。已软删除的 legacy 记录不迁移。
func (s *FlavorService) GetByFlavorID(ctx context.Context, rctx entity.RequestContext, flavorID string, readDeleted entity.ReadDeleted) (*entity.Flavor, error) {
	flavor, err := s.flavors.GetByFlavorID(ctx, rctx, flavorID, readDeleted)
	if err == nil {
		return s.finishGet(ctx, flavor, entity.SourcePrimary)
	}
	if s.legacyStore == nil || !errors.Is(err, apierror.ErrFlavorNotFound) {
		return nil, err
	}

	legacyRow, err := s.legacyStore.GetByFlavorID(ctx, rctx, flavorID, readDeleted)
	if err != nil {
		return nil, err
	}
	if legacyRow.DeletedAt.Valid {
		return s.finishGet(ctx, legacyRow, entity.SourceLegacy)
	}

	migrated, source, err := s.migrateFromLegacy(ctx, rctx, legacyRow)
	if err != nil {
		return nil, err
	}
	return s.finishGet(ctx, migrated, source)
}

// migrateFromLegacy 把 legacy 行复制进主库，返回之后应该使用的行和它的来源库
//
// 写入冲突有两种来源：并发的未命中读取同时走到这里，后写的一方撞上
// flavorid 唯一约束（迁移已经由对方完成）；或者主库里另一个 flavor
// 占用了相同的 name（name 唯一性不跨库）。重读主库区分这两种情况：
// 读得到就按主库返回，读不到说明这条记录暂时只能留在 legacy 库，
// 原样返回 legacy 行，不向调用方报错。
func (s *FlavorService) migrateFromLegacy(ctx context.Context, rctx entity.RequestContext, legacyRow *model.Flavor) (*model.Flavor, entity.FlavorSource, error) {
	logger := zerolog.Ctx(ctx)

	clone, err := cloneForMigration(legacyRow)
	if err != nil {
		return nil, entity.SourceLegacy, apierror.WrapError(apierror.ErrInternalError, "Failed to clone legacy flavor", err)
	}
	grants, err := s.legacyStore.AccessGetByFlavorID(ctx, legacyRow.FlavorID)
	if err != nil && !errors.Is(err, apierror.ErrFlavorNotFound) {
		return nil, entity.SourceLegacy, err
	}

	created, err := s.flavors.Create(ctx, clone, specsToMap(legacyRow.ExtraSpecs), projectIDs(grants))
	if err != nil {
		if errors.Is(err, apierror.ErrFlavorIDExists) || errors.Is(err, apierror.ErrFlavorExists) {
			existing, readErr := s.flavors.GetByFlavorID(ctx, rctx, legacyRow.FlavorID, entity.ReadDeletedNo)
			if readErr == nil {
				logger.Debug().
					Str("flavorid", legacyRow.FlavorID).
					Msg("Concurrent migration already copied flavor, reading from primary")
				return existing, entity.SourcePrimary, nil
			}
			if errors.Is(readErr, apierror.ErrFlavorNotFound) {
				logger.Warn().
					Str("flavorid", legacyRow.FlavorID).
					Str("name", legacyRow.Name).
					Msg("Flavor conflicts with a different primary record, serving legacy row without migrating")
				return legacyRow, entity.SourceLegacy, nil
			}
			return nil, entity.SourceLegacy, readErr
		}
		return nil, entity.SourceLegacy, err
	}

	logger.Info().
		Str("flavorid", created.FlavorID).
		Uint("id", created.ID).
		Msg("Migrated flavor from legacy store on read")
	return created, entity.SourcePrimary, nil
}

// ListAll 查询合并后的 flavor 列表
//
// 两个库各按相同的过滤条件查询，结果按 flavorid 合并去重（主库优先），
// 合并后统一排序，再按 marker 切片、按 limit 截断。marker 切片始终作用在
// 合并后的列表上，避免只在主库分页时 legacy 贡献的行被重复或丢失。
// marker 在两个库都找不到时返回 ErrMarkerNotFound。
func (s *FlavorService) ListAll(ctx context.Context, rctx entity.RequestContext, opts entity.ListFlavorsOptions) ([]entity.Flavor, error) {
	logger := zerolog.Ctx(ctx)

	// 迁移完成后的单库模式，直接用主库的原生键集分页
	if s.legacyStore == nil {
		models, err := s.flavors.List(ctx, rctx, opts)
		if err != nil {
			return nil, err
		}
		result := make([]entity.Flavor, 0, len(models))
		for _, m := range models {
			result = append(result, *flavorModelToEntity(m, entity.SourcePrimary))
		}
		return result, nil
	}

	// 双库模式：主库查询不带 marker/limit，分页在合并视图上统一做
	primaryOpts := opts
	primaryOpts.Marker = ""
	primaryOpts.Limit = 0
	primaryModels, err := s.flavors.List(ctx, rctx, primaryOpts)
	if err != nil {
		return nil, err
	}
	legacyModels, err := s.legacyStore.GetAll(ctx, rctx, opts)
	if err != nil {
		return nil, err
	}

	merged := unionByFlavorID(primaryModels, legacyModels)
	sortFlavorList(merged, opts.SortKey, opts.SortDir)
	if opts.Marker != "" {
		merged, err = sliceAfterMarker(merged, opts.Marker)
		if err != nil {
			return nil, err
		}
	}
	merged = limitFlavorList(merged, opts.Limit)

	logger.Debug().
		Int("primary", len(primaryModels)).
		Int("legacy", len(legacyModels)).
		Int("merged", len(merged)).
		Msg("Merged flavor list from both stores")

	result := make([]entity.Flavor, 0, len(merged))
	for _, sf := range merged {
		result = append(result, *flavorModelToEntity(sf.model, sf.source))
	}
	return result, nil
}

// Save 保存实体上的本地变更
//
// 只允许 extra specs 和访问授权的变更，差量由加载时的快照算出；
// 其他字段的变更一律拒绝。写入路由到记录的来源库。
func (s *FlavorService) Save(ctx context.Context, flavor *entity.Flavor) error {
	if !flavor.Tracked() {
		return apierror.ErrFlavorActionError.WithMessagef(
			"flavor %q was not loaded, nothing to diff against", flavor.FlavorID)
	}
	if flavor.FieldsChanged() {
		return apierror.ErrFlavorActionError.WithMessagef(
			"cannot save flavor %q: read-only fields were changed", flavor.FlavorID)
	}

	toUpsert, toDelete := flavor.ExtraSpecChanges()
	addedProjects, removedProjects := flavor.ProjectChanges()

	if len(toUpsert) > 0 {
		if err := s.upsertSpecs(ctx, flavor.Source, flavor.FlavorID, toUpsert); err != nil {
			return err
		}
	}
	for _, key := range toDelete {
		if err := s.deleteSpec(ctx, flavor.Source, flavor.FlavorID, key); err != nil {
			return err
		}
	}
	for _, project := range addedProjects {
		if err := s.accessAdd(ctx, flavor.Source, flavor.FlavorID, project); err != nil {
			return err
		}
	}
	for _, project := range removedProjects {
		if err := s.accessRemove(ctx, flavor.Source, flavor.FlavorID, project); err != nil {
			return err
		}
	}

	flavor.ResetChanges()
	return nil
}

// AddAccess 给项目授权并刷新实体上的授权列表
// 实体上有未保存的授权变更时拒绝，先 Save 或丢弃再操作
func (s *FlavorService) AddAccess(ctx context.Context, flavor *entity.Flavor, projectID string) error {
	if flavor.ProjectsPending() {
		return apierror.ErrFlavorActionError.WithMessagef(
			"cannot add access to flavor %q: projects modified locally", flavor.FlavorID)
	}
	if err := s.accessAdd(ctx, flavor.Source, flavor.FlavorID, projectID); err != nil {
		return err
	}
	return s.reloadProjects(ctx, flavor)
}

// RemoveAccess 收回项目授权并刷新实体上的授权列表
func (s *FlavorService) RemoveAccess(ctx context.Context, flavor *entity.Flavor, projectID string) error {
	if flavor.ProjectsPending() {
		return apierror.ErrFlavorActionError.WithMessagef(
			"cannot remove access from flavor %q: projects modified locally", flavor.FlavorID)
	}
	if err := s.accessRemove(ctx, flavor.Source, flavor.FlavorID, projectID); err != nil {
		return err
	}
	return s.reloadProjects(ctx, flavor)
}

// ListAccess 查询授权列表，主库未命中时回落到 legacy 库
func (s *FlavorService) ListAccess(ctx context.Context, flavorID string) ([]entity.FlavorAccess, error) {
	grants, err := s.access.Get(ctx, flavorID)
	if err != nil {
		if s.legacyStore == nil || !errors.Is(err, apierror.ErrFlavorNotFound) {
			return nil, err
		}
		grants, err = s.legacyStore.AccessGetByFlavorID(ctx, flavorID)
		if err != nil {
			return nil, err
		}
	}
	result := make([]entity.FlavorAccess, 0, len(grants))
	for _, grant := range grants {
		result = append(result, entity.FlavorAccess{FlavorID: flavorID, ProjectID: grant.ProjectID})
	}
	return result, nil
}

// GetExtraSpecs 查询 extra specs，主库未命中时回落到 legacy 库
func (s *FlavorService) GetExtraSpecs(ctx context.Context, rctx entity.RequestContext, flavorID string) (map[string]string, error) {
	specs, err := s.specs.Get(ctx, flavorID)
	if err == nil {
		return specs, nil
	}
	if s.legacyStore == nil || !errors.Is(err, apierror.ErrFlavorNotFound) {
		return nil, err
	}
	legacyRow, err := s.legacyStore.GetByFlavorID(ctx, rctx, flavorID, entity.ReadDeletedNo)
	if err != nil {
		return nil, err
	}
	return specsToMap(legacyRow.ExtraSpecs), nil
}

// UpsertExtraSpecs 批量写入 extra specs，写到持有该记录的库
func (s *FlavorService) UpsertExtraSpecs(ctx context.Context, flavorID string, specs map[string]string) error {
	err := s.specs.Upsert(ctx, flavorID, specs, repository.DefaultExtraSpecRetries)
	if err == nil || s.legacyStore == nil || !errors.Is(err, apierror.ErrFlavorNotFound) {
		return err
	}
	return s.legacyStore.ExtraSpecsUpdateOrCreate(ctx, flavorID, specs)
}

// DeleteExtraSpec 删除单个 extra spec key，写到持有该记录的库
func (s *FlavorService) DeleteExtraSpec(ctx context.Context, flavorID string, key string) error {
	err := s.specs.Delete(ctx, flavorID, key)
	if err == nil || s.legacyStore == nil || !errors.Is(err, apierror.ErrFlavorNotFound) {
		return err
	}
	return s.legacyStore.ExtraSpecsDelete(ctx, flavorID, key)
}

// Destroy 按名称删除 flavor
//
// 主库删除后顺带清理 legacy 库里的同名记录；legacy 记录已经不存在时
// 不算失败。两个库都没有这条记录时返回 ErrFlavorNotFoundByName。
func (s *FlavorService) Destroy(ctx context.Context, name string) error {
	logger := zerolog.Ctx(ctx)

	primaryErr := s.flavors.Destroy(ctx, name)
	if primaryErr != nil && !errors.Is(primaryErr, apierror.ErrFlavorNotFoundByName) {
		return primaryErr
	}
	if s.legacyStore == nil {
		return primaryErr
	}

	legacyErr := s.legacyStore.Destroy(ctx, name)
	switch {
	case legacyErr == nil:
		return nil
	case errors.Is(legacyErr, apierror.ErrFlavorNotFoundByName):
		// legacy 侧已经没有了，主库删成功就算成功
		return primaryErr
	case primaryErr == nil:
		// 主库已删除，legacy 清理失败不阻塞调用方
		logger.Warn().Err(legacyErr).Str("name", name).
			Msg("Best-effort legacy cleanup failed during destroy")
		return nil
	default:
		return legacyErr
	}
}

// finishGet 加载授权列表、转换成实体并重建快照
func (s *FlavorService) finishGet(ctx context.Context, m *model.Flavor, source entity.FlavorSource) (*entity.Flavor, error) {
	e := flavorModelToEntity(m, source)
	if !e.Deleted {
		projects, err := s.loadProjects(ctx, source, m.FlavorID)
		if err != nil {
			return nil, err
		}
		e.Projects = projects
	}
	e.ResetChanges()
	return e, nil
}

// reloadProjects 刷新实体上的授权列表并重建快照
func (s *FlavorService) reloadProjects(ctx context.Context, flavor *entity.Flavor) error {
	projects, err := s.loadProjects(ctx, flavor.Source, flavor.FlavorID)
	if err != nil {
		return err
	}
	flavor.Projects = projects
	flavor.ResetChanges()
	return nil
}

// loadProjects 按来源库读取授权的项目列表
func (s *FlavorService) loadProjects(ctx context.Context, source entity.FlavorSource, flavorID string) ([]string, error) {
	var (
		grants []model.FlavorProject
		err    error
	)
	if source == entity.SourceLegacy && s.legacyStore != nil {
		grants, err = s.legacyStore.AccessGetByFlavorID(ctx, flavorID)
	} else {
		grants, err = s.access.Get(ctx, flavorID)
	}
	if err != nil {
		return nil, err
	}
	return projectIDs(grants), nil
}

// upsertSpecs 按来源库写 extra specs
func (s *FlavorService) upsertSpecs(ctx context.Context, source entity.FlavorSource, flavorID string, specs map[string]string) error {
	if source == entity.SourceLegacy && s.legacyStore != nil {
		return s.legacyStore.ExtraSpecsUpdateOrCreate(ctx, flavorID, specs)
	}
	return s.specs.Upsert(ctx, flavorID, specs, repository.DefaultExtraSpecRetries)
}

// deleteSpec 按来源库删 extra spec
func (s *FlavorService) deleteSpec(ctx context.Context, source entity.FlavorSource, flavorID string, key string) error {
	if source == entity.SourceLegacy && s.legacyStore != nil {
		return s.legacyStore.ExtraSpecsDelete(ctx, flavorID, key)
	}
	return s.specs.Delete(ctx, flavorID, key)
}

// accessAdd 按来源库加授权
func (s *FlavorService) accessAdd(ctx context.Context, source entity.FlavorSource, flavorID string, projectID string) error {
	if source == entity.SourceLegacy && s.legacyStore != nil {
		return s.legacyStore.AccessAdd(ctx, flavorID, projectID)
	}
	return s.access.Add(ctx, flavorID, projectID)
}

// accessRemove 按来源库收回授权
func (s *FlavorService) accessRemove(ctx context.Context, source entity.FlavorSource, flavorID string, projectID string) error {
	if source == entity.SourceLegacy && s.legacyStore != nil {
		return s.legacyStore.AccessRemove(ctx, flavorID, projectID)
	}
	return s.access.Remove(ctx, flavorID, projectID)
}

// unionByFlavorID 按 flavorid 合并两个库的结果
// 主库优先：legacy 只贡献主库里没有的 flavorid
func unionByFlavorID(primary, legacyRows []*model.Flavor) []sourcedFlavor {
	merged := make([]sourcedFlavor, 0, len(primary)+len(legacyRows))
	seen := make(map[string]struct{}, len(primary))
	for _, m := range primary {
		merged = append(merged, sourcedFlavor{model: m, source: entity.SourcePrimary})
		seen[m.FlavorID] = struct{}{}
	}
	for _, m := range legacyRows {
		if _, ok := seen[m.FlavorID]; ok {
			continue
		}
		merged = append(merged, sourcedFlavor{model: m, source: entity.SourceLegacy})
	}
	return merged
}

// sortFlavorList 按排序键稳定排序合并后的列表
// 相等元素保持合并前的相对顺序
func sortFlavorList(list []sourcedFlavor, sortKey, sortDir string) {
	desc := sortDir == entity.SortDesc
	sort.SliceStable(list, func(i, j int) bool {
		if desc {
			return flavorLess(list[j].model, list[i].model, sortKey)
		}
		return flavorLess(list[i].model, list[j].model, sortKey)
	})
}

// flavorLess 排序键比较，未知键按 flavorid
func flavorLess(a, b *model.Flavor, sortKey string) bool {
	switch sortKey {
	case "id":
		return a.ID < b.ID
	case "name":
		return a.Name < b.Name
	case "memory_mb":
		return a.MemoryMB < b.MemoryMB
	case "vcpus":
		return a.VCPUs < b.VCPUs
	case "root_gb":
		return a.RootGB < b.RootGB
	case "created_at":
		return a.CreatedAt.Before(b.CreatedAt)
	default:
		return a.FlavorID < b.FlavorID
	}
}

// sliceAfterMarker 返回合并列表里严格位于 marker 之后的部分
// marker 不在列表里返回 ErrMarkerNotFound
func sliceAfterMarker(list []sourcedFlavor, marker string) ([]sourcedFlavor, error) {
	for i, sf := range list {
		if sf.model.FlavorID == marker {
			return list[i+1:], nil
		}
	}
	return nil, apierror.ErrMarkerNotFound.WithMessagef("marker %q not found", marker)
}

// limitFlavorList 截断到 limit 条，limit <= 0 表示不限制
func limitFlavorList(list []sourcedFlavor, limit int) []sourcedFlavor {
	if limit <= 0 || limit >= len(list) {
		return list
	}
	return list[:limit]
}
