package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jimyag/flavord/internal/flavord/entity"
	"github.com/jimyag/flavord/internal/flavord/repository/model"
	"github.com/jimyag/flavord/pkg/apierror"
	"gorm.io/gorm"
)

// allowedSortKeys 排序字段白名单，防止 SQL 注入
var allowedSortKeys = map[string]string{
	"id":         "id",
	"flavorid":   "flavorid",
	"name":       "name",
	"memory_mb":  "memory_mb",
	"vcpus":      "vcpus",
	"root_gb":    "root_gb",
	"created_at": "created_at",
}

// FlavorRepository 主库 flavor 仓库接口
type FlavorRepository interface {
	Create(ctx context.Context, flavor *model.Flavor, extraSpecs map[string]string, projects []string) (*model.Flavor, error)
	GetByID(ctx context.Context, rctx entity.RequestContext, id uint) (*model.Flavor, error)
	GetByName(ctx context.Context, rctx entity.RequestContext, name string) (*model.Flavor, error)
	GetByFlavorID(ctx context.Context, rctx entity.RequestContext, flavorID string, readDeleted entity.ReadDeleted) (*model.Flavor, error)
	List(ctx context.Context, rctx entity.RequestContext, opts entity.ListFlavorsOptions) ([]*model.Flavor, error)
	Destroy(ctx context.Context, name string) error
}

type flavorRepository struct {
	db *gorm.DB
}

// NewFlavorRepository 创建 flavor 仓库
func NewFlavorRepository(db *gorm.DB) FlavorRepository {
	return &flavorRepository{db: db}
}

// visibleScope 非管理员只能看到公开的和自己项目被授权的 flavor
func (r *flavorRepository) visibleScope(rctx entity.RequestContext) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if rctx.IsAdmin {
			return db
		}
		granted := r.db.Model(&model.FlavorProject{}).
			Select("flavor_id").
			Where("project_id = ?", rctx.ProjectID)
		return db.Where("flavors.is_public = ? OR flavors.id IN (?)", true, granted)
	}
}

// readDeletedScope 应用软删除可见性模式
func readDeletedScope(mode entity.ReadDeleted) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch mode {
		case entity.ReadDeletedYes:
			return db.Unscoped()
		case entity.ReadDeletedOnly:
			return db.Unscoped().Where("flavors.deleted_at IS NOT NULL")
		default:
			return db
		}
	}
}

// Create 创建 flavor，extra specs 和访问授权写在同一个事务里
//
// 创建前先做存在性检查，但并发下真正兜底的是唯一索引：
// 提交时的唯一约束冲突会按冲突列映射回 ErrFlavorIDExists / ErrFlavorExists。
func (r *flavorRepository) Create(ctx context.Context, flavor *model.Flavor, extraSpecs map[string]string, projects []string) (*model.Flavor, error) {
	db := r.db.WithContext(ctx)

	// 存在性预检查
	var count int64
	if err := db.Model(&model.Flavor{}).Where("flavorid = ?", flavor.FlavorID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check flavorid exists: %w", err)
	}
	if count > 0 {
		return nil, apierror.ErrFlavorIDExists.WithMessagef("flavor with flavorid %q already exists", flavor.FlavorID)
	}
	if err := db.Model(&model.Flavor{}).Where("name = ?", flavor.Name).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check name exists: %w", err)
	}
	if count > 0 {
		return nil, apierror.ErrFlavorExists.WithMessagef("flavor with name %q already exists", flavor.Name)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(flavor).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return r.duplicateCreateError(tx, flavor)
			}
			return err
		}
		for k, v := range extraSpecs {
			spec := &model.FlavorExtraSpec{FlavorRef: flavor.ID, Key: k, Value: v}
			if err := tx.Create(spec).Error; err != nil {
				return err
			}
		}
		for _, project := range uniqueStrings(projects) {
			grant := &model.FlavorProject{FlavorRef: flavor.ID, ProjectID: project}
			if err := tx.Create(grant).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.getByRef(ctx, flavor.ID)
}

// duplicateCreateError 根据冲突列判断返回哪种冲突错误
// 约束冲突本身不带列信息，重新查一次确定是 flavorid 还是 name 冲突
func (r *flavorRepository) duplicateCreateError(tx *gorm.DB, flavor *model.Flavor) error {
	var count int64
	if err := tx.Model(&model.Flavor{}).Where("flavorid = ?", flavor.FlavorID).Count(&count).Error; err == nil && count > 0 {
		return apierror.ErrFlavorIDExists.WithMessagef("flavor with flavorid %q already exists", flavor.FlavorID)
	}
	return apierror.ErrFlavorExists.WithMessagef("flavor with name %q already exists", flavor.Name)
}

// getByRef 按内部主键读取（不做可见性过滤，仅内部使用）
func (r *flavorRepository) getByRef(ctx context.Context, id uint) (*model.Flavor, error) {
	var flavor model.Flavor
	if err := r.db.WithContext(ctx).Preload("ExtraSpecs").First(&flavor, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.ErrFlavorNotFound.WithMessagef("flavor %d not found", id)
		}
		return nil, err
	}
	return &flavor, nil
}

// GetByID 按内部主键获取 flavor（预加载 extra specs）
func (r *flavorRepository) GetByID(ctx context.Context, rctx entity.RequestContext, id uint) (*model.Flavor, error) {
	var flavor model.Flavor
	err := r.db.WithContext(ctx).
		Scopes(r.visibleScope(rctx)).
		Preload("ExtraSpecs").
		Where("flavors.id = ?", id).
		First(&flavor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.ErrFlavorNotFound.WithMessagef("flavor %d not found", id)
		}
		return nil, err
	}
	return &flavor, nil
}

// GetByName 按名称获取 flavor（预加载 extra specs）
func (r *flavorRepository) GetByName(ctx context.Context, rctx entity.RequestContext, name string) (*model.Flavor, error) {
	var flavor model.Flavor
	err := r.db.WithContext(ctx).
		Scopes(r.visibleScope(rctx)).
		Preload("ExtraSpecs").
		Where("flavors.name = ?", name).
		First(&flavor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.ErrFlavorNotFoundByName.WithMessagef("flavor with name %q not found", name)
		}
		return nil, err
	}
	return &flavor, nil
}

// GetByFlavorID 按业务主键获取 flavor（预加载 extra specs）
//
// 软删除后重建会产生同一 flavorid 的多条记录，
// 按（未删除优先，id 升序）消歧，和按业务主键重建的语义保持一致。
func (r *flavorRepository) GetByFlavorID(ctx context.Context, rctx entity.RequestContext, flavorID string, readDeleted entity.ReadDeleted) (*model.Flavor, error) {
	var flavor model.Flavor
	err := r.db.WithContext(ctx).
		Scopes(readDeletedScope(readDeleted), r.visibleScope(rctx)).
		Preload("ExtraSpecs").
		Where("flavors.flavorid = ?", flavorID).
		Order("(flavors.deleted_at IS NOT NULL) ASC, flavors.id ASC").
		First(&flavor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.ErrFlavorNotFound.WithMessagef("flavor %q not found", flavorID)
		}
		return nil, err
	}
	return &flavor, nil
}

// List 查询 flavor 列表，支持过滤、排序和基于 (sort_key, id) 的键集分页
//
// marker 是上一页最后一条的 flavorid，返回严格在 marker 之后的记录。
// marker 在库里不存在时返回 ErrMarkerNotFound，调用方（merger）会再到 legacy 库找。
func (r *flavorRepository) List(ctx context.Context, rctx entity.RequestContext, opts entity.ListFlavorsOptions) ([]*model.Flavor, error) {
	sortCol, sortDir, err := normalizeSort(opts.SortKey, opts.SortDir)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&model.Flavor{}).
		Scopes(readDeletedScope(opts.ReadDeleted), r.visibleScope(rctx))
	query = applyFilters(query, rctx, opts.Filters)

	// marker 定位到行，再用 (sort_key, id) 键集条件翻页
	if opts.Marker != "" {
		var markerRow model.Flavor
		err := r.db.WithContext(ctx).
			Scopes(readDeletedScope(opts.ReadDeleted), r.visibleScope(rctx)).
			Where("flavors.flavorid = ?", opts.Marker).
			Order("(flavors.deleted_at IS NOT NULL) ASC, flavors.id ASC").
			First(&markerRow).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apierror.ErrMarkerNotFound.WithMessagef("marker %q not found", opts.Marker)
			}
			return nil, err
		}
		markerSortValue := sortValue(&markerRow, sortCol)
		if sortDir == entity.SortDesc {
			query = query.Where(
				fmt.Sprintf("flavors.%s < ? OR (flavors.%s = ? AND flavors.id < ?)", sortCol, sortCol),
				markerSortValue, markerSortValue, markerRow.ID,
			)
		} else {
			query = query.Where(
				fmt.Sprintf("flavors.%s > ? OR (flavors.%s = ? AND flavors.id > ?)", sortCol, sortCol),
				markerSortValue, markerSortValue, markerRow.ID,
			)
		}
	}

	query = query.Order(fmt.Sprintf("flavors.%s %s, flavors.id %s", sortCol, sortDir, sortDir))
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	var flavors []*model.Flavor
	if err := query.Preload("ExtraSpecs").Find(&flavors).Error; err != nil {
		return nil, err
	}
	return flavors, nil
}

// Destroy 按名称软删除 flavor，并在同一事务中级联软删除 extra specs 和访问授权
func (r *flavorRepository) Destroy(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var flavor model.Flavor
		if err := tx.Where("name = ?", name).First(&flavor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierror.ErrFlavorNotFoundByName.WithMessagef("flavor with name %q not found", name)
			}
			return err
		}
		if err := tx.Delete(&flavor).Error; err != nil {
			return err
		}
		if err := tx.Where("flavor_id = ?", flavor.ID).Delete(&model.FlavorExtraSpec{}).Error; err != nil {
			return err
		}
		if err := tx.Where("flavor_id = ?", flavor.ID).Delete(&model.FlavorProject{}).Error; err != nil {
			return err
		}
		return nil
	})
}

// normalizeSort 校验并归一化排序参数
func normalizeSort(sortKey, sortDir string) (col, dir string, err error) {
	if sortKey == "" {
		sortKey = "flavorid"
	}
	col, ok := allowedSortKeys[sortKey]
	if !ok {
		return "", "", apierror.ErrInvalidParameter.WithMessagef("invalid sort_key %q", sortKey)
	}
	switch sortDir {
	case "", entity.SortAsc:
		dir = entity.SortAsc
	case entity.SortDesc:
		dir = entity.SortDesc
	default:
		return "", "", apierror.ErrInvalidParameter.WithMessagef("invalid sort_dir %q", sortDir)
	}
	return col, dir, nil
}

// applyFilters 应用 list 过滤条件，所有条件是 AND 关系
func applyFilters(query *gorm.DB, rctx entity.RequestContext, filters entity.FlavorFilters) *gorm.DB {
	if filters.MinMemoryMB != nil {
		query = query.Where("flavors.memory_mb >= ?", *filters.MinMemoryMB)
	}
	if filters.MinRootGB != nil {
		query = query.Where("flavors.root_gb >= ?", *filters.MinRootGB)
	}
	if filters.Disabled != nil {
		query = query.Where("flavors.disabled = ?", *filters.Disabled)
	}
	if filters.IsPublic != nil {
		if *filters.IsPublic && rctx.ProjectID != "" {
			// 过滤公开规格时，调用方项目被授权的非公开规格也要包含进来
			granted := query.Session(&gorm.Session{NewDB: true}).
				Model(&model.FlavorProject{}).
				Select("flavor_id").
				Where("project_id = ?", rctx.ProjectID)
			query = query.Where("flavors.is_public = ? OR flavors.id IN (?)", true, granted)
		} else {
			query = query.Where("flavors.is_public = ?", *filters.IsPublic)
		}
	}
	return query
}

// sortValue 取 marker 行上排序列的值
func sortValue(flavor *model.Flavor, sortCol string) any {
	switch sortCol {
	case "id":
		return flavor.ID
	case "name":
		return flavor.Name
	case "memory_mb":
		return flavor.MemoryMB
	case "vcpus":
		return flavor.VCPUs
	case "root_gb":
		return flavor.RootGB
	case "created_at":
		return flavor.CreatedAt
	default:
		return flavor.FlavorID
	}
}

// uniqueStrings 去重，保持原有顺序
func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
