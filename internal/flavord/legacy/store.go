// Package legacy 提供 legacy cell 库的只读为主的访问实现
//
// flavor 数据正在从按 cell 划分的 legacy 库迁移到共享的 API 库（主库）。
// 迁移期间两个库同时在线，读路径要把两边的结果合并成一个视图
// （见 service 包的 merger），legacy 库只通过这里的 Store 接口访问。
// 迁移完成后整个包可以和 legacy 库一起下线。
package legacy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jimyag/flavord/internal/flavord/entity"
	"github.com/jimyag/flavord/internal/flavord/repository"
	"github.com/jimyag/flavord/internal/flavord/repository/model"
	"github.com/jimyag/flavord/pkg/apierror"
	"gorm.io/gorm"
)

// Store legacy 库的访问接口，语义和主库的对应操作一致
// （过滤、排序、软删除可见性），但 List 不做分页，整表按过滤条件取回
type Store interface {
	Get(ctx context.Context, rctx entity.RequestContext, id uint) (*model.Flavor, error)
	GetByName(ctx context.Context, rctx entity.RequestContext, name string) (*model.Flavor, error)
	GetByFlavorID(ctx context.Context, rctx entity.RequestContext, flavorID string, readDeleted entity.ReadDeleted) (*model.Flavor, error)
	GetAll(ctx context.Context, rctx entity.RequestContext, opts entity.ListFlavorsOptions) ([]*model.Flavor, error)
	Destroy(ctx context.Context, name string) error
	AccessGetByFlavorID(ctx context.Context, flavorID string) ([]model.FlavorProject, error)
	AccessAdd(ctx context.Context, flavorID string, projectID string) error
	AccessRemove(ctx context.Context, flavorID string, projectID string) error
	ExtraSpecsUpdateOrCreate(ctx context.Context, flavorID string, specs map[string]string) error
	ExtraSpecsDelete(ctx context.Context, flavorID string, key string) error
	Close() error
}

type store struct {
	db *gorm.DB
}

// New 打开 legacy 库
// schema 和主库逻辑一致，复用 repository.Open 完成迁移和索引创建
func New(dbPath string) (Store, error) {
	db, err := repository.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open legacy database: %w", err)
	}
	return &store{db: db}, nil
}

// Close 关闭 legacy 库连接
func (s *store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// visibleScope 和主库相同的可见性规则
func (s *store) visibleScope(rctx entity.RequestContext) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if rctx.IsAdmin {
			return db
		}
		granted := s.db.Model(&model.FlavorProject{}).
			Select("flavor_id").
			Where("project_id = ?", rctx.ProjectID)
		return db.Where("flavors.is_public = ? OR flavors.id IN (?)", true, granted)
	}
}

// Get 按内部主键读取
func (s *store) Get(ctx context.Context, rctx entity.RequestContext, id uint) (*model.Flavor, error) {
	var flavor model.Flavor
	err := s.db.WithContext(ctx).
		Scopes(s.visibleScope(rctx)).
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

// GetByName 按名称读取
func (s *store) GetByName(ctx context.Context, rctx entity.RequestContext, name string) (*model.Flavor, error) {
	var flavor model.Flavor
	err := s.db.WithContext(ctx).
		Scopes(s.visibleScope(rctx)).
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

// GetByFlavorID 按业务主键读取，消歧规则和主库一致（未删除优先，id 升序）
func (s *store) GetByFlavorID(ctx context.Context, rctx entity.RequestContext, flavorID string, readDeleted entity.ReadDeleted) (*model.Flavor, error) {
	query := s.db.WithContext(ctx)
	switch readDeleted {
	case entity.ReadDeletedYes:
		query = query.Unscoped()
	case entity.ReadDeletedOnly:
		query = query.Unscoped().Where("flavors.deleted_at IS NOT NULL")
	}

	var flavor model.Flavor
	err := query.
		Scopes(s.visibleScope(rctx)).
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

// GetAll 按过滤条件取回全部匹配记录
//
// 不做分页：merger 合并两个库的结果后统一做 marker 切片和 limit 截断，
// 这里提前分页会导致合并视图丢行。排序也交给 merger，这里只保证稳定顺序。
func (s *store) GetAll(ctx context.Context, rctx entity.RequestContext, opts entity.ListFlavorsOptions) ([]*model.Flavor, error) {
	query := s.db.WithContext(ctx).
		Model(&model.Flavor{}).
		Scopes(s.visibleScope(rctx))
	switch opts.ReadDeleted {
	case entity.ReadDeletedYes:
		query = query.Unscoped()
	case entity.ReadDeletedOnly:
		query = query.Unscoped().Where("flavors.deleted_at IS NOT NULL")
	}

	filters := opts.Filters
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
			granted := query.Session(&gorm.Session{NewDB: true}).
				Model(&model.FlavorProject{}).
				Select("flavor_id").
				Where("project_id = ?", rctx.ProjectID)
			query = query.Where("flavors.is_public = ? OR flavors.id IN (?)", true, granted)
		} else {
			query = query.Where("flavors.is_public = ?", *filters.IsPublic)
		}
	}

	var flavors []*model.Flavor
	if err := query.Order("flavors.id ASC").Preload("ExtraSpecs").Find(&flavors).Error; err != nil {
		return nil, err
	}
	return flavors, nil
}

// Destroy 按名称软删除，级联软删除 extra specs 和访问授权
func (s *store) Destroy(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
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
		return tx.Where("flavor_id = ?", flavor.ID).Delete(&model.FlavorProject{}).Error
	})
}

// ref 按业务主键解析未删除记录的内部主键
func (s *store) ref(ctx context.Context, flavorID string) (uint, error) {
	var flavor model.Flavor
	err := s.db.WithContext(ctx).Select("id").Where("flavorid = ?", flavorID).First(&flavor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apierror.ErrFlavorNotFound.WithMessagef("flavor %q not found", flavorID)
		}
		return 0, err
	}
	return flavor.ID, nil
}

// AccessGetByFlavorID 返回 flavor 的全部未删除授权
func (s *store) AccessGetByFlavorID(ctx context.Context, flavorID string) ([]model.FlavorProject, error) {
	ref, err := s.ref(ctx, flavorID)
	if err != nil {
		return nil, err
	}
	var grants []model.FlavorProject
	if err := s.db.WithContext(ctx).Where("flavor_id = ?", ref).Order("id ASC").Find(&grants).Error; err != nil {
		return nil, err
	}
	return grants, nil
}

// AccessAdd 给项目授权
func (s *store) AccessAdd(ctx context.Context, flavorID string, projectID string) error {
	ref, err := s.ref(ctx, flavorID)
	if err != nil {
		return err
	}
	grant := &model.FlavorProject{FlavorRef: ref, ProjectID: projectID}
	if err := s.db.WithContext(ctx).Create(grant).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apierror.ErrFlavorAccessExists.WithMessagef(
				"project %q already has access to flavor %q", projectID, flavorID)
		}
		return err
	}
	return nil
}

// AccessRemove 收回项目授权
func (s *store) AccessRemove(ctx context.Context, flavorID string, projectID string) error {
	ref, err := s.ref(ctx, flavorID)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).
		Where("flavor_id = ? AND project_id = ?", ref, projectID).
		Delete(&model.FlavorProject{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apierror.ErrFlavorAccessNotFound.WithMessagef(
			"project %q does not have access to flavor %q", projectID, flavorID)
	}
	return nil
}

// ExtraSpecsUpdateOrCreate 批量写入 extra specs，语义同主库 Upsert
// 并发写同一个 key 的唯一约束冲突同样走有界重试
func (s *store) ExtraSpecsUpdateOrCreate(ctx context.Context, flavorID string, specs map[string]string) error {
	ref, err := s.ref(ctx, flavorID)
	if err != nil {
		return err
	}
	return repository.RetryOnDuplicate(repository.DefaultExtraSpecRetries, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for k, v := range specs {
				update := tx.Model(&model.FlavorExtraSpec{}).
					Where("flavor_id = ? AND key = ?", ref, k).
					Update("value", v)
				if update.Error != nil {
					return update.Error
				}
				if update.RowsAffected > 0 {
					continue
				}
				spec := &model.FlavorExtraSpec{FlavorRef: ref, Key: k, Value: v}
				if err := tx.Create(spec).Error; err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// ExtraSpecsDelete 软删除指定 key
func (s *store) ExtraSpecsDelete(ctx context.Context, flavorID string, key string) error {
	ref, err := s.ref(ctx, flavorID)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).
		Where("flavor_id = ? AND key = ?", ref, key).
		Delete(&model.FlavorExtraSpec{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apierror.ErrFlavorExtraSpecsNotFound.WithMessagef(
			"extra spec %q not found for flavor %q", key, flavorID)
	}
	return nil
}
