package repository

import (
	"context"
	"errors"

	"github.com/jimyag/flavord/internal/flavord/repository/model"
	"github.com/jimyag/flavord/pkg/apierror"
	"gorm.io/gorm"
)

// AccessRepository 规格访问授权仓库接口
type AccessRepository interface {
	Get(ctx context.Context, flavorID string) ([]model.FlavorProject, error)
	Add(ctx context.Context, flavorID string, projectID string) error
	Remove(ctx context.Context, flavorID string, projectID string) error
}

type accessRepository struct {
	db *gorm.DB
}

// NewAccessRepository 创建访问授权仓库
func NewAccessRepository(db *gorm.DB) AccessRepository {
	return &accessRepository{db: db}
}

// Get 返回 flavor 的全部未删除授权，按创建顺序排列
func (r *accessRepository) Get(ctx context.Context, flavorID string) ([]model.FlavorProject, error) {
	db := r.db.WithContext(ctx)
	ref, err := flavorRefByFlavorID(db, flavorID)
	if err != nil {
		return nil, err
	}

	var grants []model.FlavorProject
	if err := db.Where("flavor_id = ?", ref).Order("id ASC").Find(&grants).Error; err != nil {
		return nil, err
	}
	return grants, nil
}

// Add 给项目授权
// flavor 不存在返回 ErrFlavorNotFound，重复授权返回 ErrFlavorAccessExists
func (r *accessRepository) Add(ctx context.Context, flavorID string, projectID string) error {
	db := r.db.WithContext(ctx)
	ref, err := flavorRefByFlavorID(db, flavorID)
	if err != nil {
		return err
	}

	grant := &model.FlavorProject{FlavorRef: ref, ProjectID: projectID}
	if err := db.Create(grant).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apierror.ErrFlavorAccessExists.WithMessagef(
				"project %q already has access to flavor %q", projectID, flavorID)
		}
		return err
	}
	return nil
}

// Remove 收回项目授权
// 没有删到任何行返回 ErrFlavorAccessNotFound
func (r *accessRepository) Remove(ctx context.Context, flavorID string, projectID string) error {
	db := r.db.WithContext(ctx)
	ref, err := flavorRefByFlavorID(db, flavorID)
	if err != nil {
		return err
	}

	result := db.Where("flavor_id = ? AND project_id = ?", ref, projectID).Delete(&model.FlavorProject{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apierror.ErrFlavorAccessNotFound.WithMessagef(
			"project %q does not have access to flavor %q", projectID, flavorID)
	}
	return nil
}
