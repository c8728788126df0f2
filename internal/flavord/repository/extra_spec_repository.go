package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jimyag/flavord/internal/flavord/repository/model"
	"github.com/jimyag/flavord/pkg/apierror"
	"gorm.io/gorm"
)

// DefaultExtraSpecRetries extra spec 写入的默认重试次数
const DefaultExtraSpecRetries = 10

// ExtraSpecRepository 规格扩展属性仓库接口
type ExtraSpecRepository interface {
	Get(ctx context.Context, flavorID string) (map[string]string, error)
	Upsert(ctx context.Context, flavorID string, specs map[string]string, maxRetries int) error
	Delete(ctx context.Context, flavorID string, key string) error
}

type extraSpecRepository struct {
	db *gorm.DB
}

// NewExtraSpecRepository 创建规格扩展属性仓库
func NewExtraSpecRepository(db *gorm.DB) ExtraSpecRepository {
	return &extraSpecRepository{db: db}
}

// flavorRefByFlavorID 按业务主键解析未删除 flavor 的内部主键
func flavorRefByFlavorID(db *gorm.DB, flavorID string) (uint, error) {
	var flavor model.Flavor
	if err := db.Select("id").Where("flavorid = ?", flavorID).First(&flavor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apierror.ErrFlavorNotFound.WithMessagef("flavor %q not found", flavorID)
		}
		return 0, err
	}
	return flavor.ID, nil
}

// Get 返回 flavor 的全部未删除 extra specs
func (r *extraSpecRepository) Get(ctx context.Context, flavorID string) (map[string]string, error) {
	db := r.db.WithContext(ctx)
	ref, err := flavorRefByFlavorID(db, flavorID)
	if err != nil {
		return nil, err
	}

	var specs []model.FlavorExtraSpec
	if err := db.Where("flavor_id = ?", ref).Find(&specs).Error; err != nil {
		return nil, err
	}
	result := make(map[string]string, len(specs))
	for _, spec := range specs {
		result[spec.Key] = spec.Value
	}
	return result, nil
}

// Upsert 批量写入 extra specs：已存在的 key 更新，不存在的插入
//
// 存在性检查和插入不是原子的，并发写同一个 key 会触发唯一约束冲突，
// 整个事务回滚后重试，最多 maxRetries 次；重试耗尽返回
// ErrFlavorExtraSpecUpdateFailed。
func (r *extraSpecRepository) Upsert(ctx context.Context, flavorID string, specs map[string]string, maxRetries int) error {
	db := r.db.WithContext(ctx)
	ref, err := flavorRefByFlavorID(db, flavorID)
	if err != nil {
		return err
	}

	return RetryOnDuplicate(maxRetries, func() error {
		return db.Transaction(func(tx *gorm.DB) error {
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

// Delete 软删除指定 key
func (r *extraSpecRepository) Delete(ctx context.Context, flavorID string, key string) error {
	db := r.db.WithContext(ctx)
	ref, err := flavorRefByFlavorID(db, flavorID)
	if err != nil {
		return err
	}

	result := db.Where("flavor_id = ? AND key = ?", ref, key).Delete(&model.FlavorExtraSpec{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apierror.ErrFlavorExtraSpecsNotFound.WithMessagef("extra spec %q not found for flavor %q", key, flavorID)
	}
	return nil
}

// RetryOnDuplicate 在唯一约束冲突时重试 op，最多 attempts 次
// 其他错误直接返回，重试耗尽返回 ErrFlavorExtraSpecUpdateFailed
// 主库的 Upsert 和 legacy 库的 ExtraSpecsUpdateOrCreate 共用
func RetryOnDuplicate(attempts int, op func() error) error {
	if attempts <= 0 {
		attempts = DefaultExtraSpecRetries
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = op()
		if err == nil || !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return apierror.WrapError(
		apierror.ErrFlavorExtraSpecUpdateFailed,
		fmt.Sprintf("update or create extra specs failed after %d retries", attempts),
		err,
	)
}
