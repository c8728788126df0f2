// Package service 提供业务逻辑层的服务实现
package service

import (
	"time"

	"github.com/jimyag/flavord/internal/flavord/entity"
	"github.com/jimyag/flavord/internal/flavord/repository/model"
	"github.com/jinzhu/copier"
	"gorm.io/gorm"
)

// flavorModelToEntity 将 model.Flavor 转换为 entity.Flavor 并打上来源标记
// extra specs 从预加载的关联行拍平成 map
func flavorModelToEntity(m *model.Flavor, source entity.FlavorSource) *entity.Flavor {
	e := &entity.Flavor{
		ID:          m.ID,
		Name:        m.Name,
		FlavorID:    m.FlavorID,
		MemoryMB:    m.MemoryMB,
		VCPUs:       m.VCPUs,
		RootGB:      m.RootGB,
		EphemeralGB: m.EphemeralGB,
		Swap:        m.Swap,
		RxTxFactor:  m.RxTxFactor,
		Disabled:    m.Disabled,
		IsPublic:    m.IsPublic,
		Deleted:     m.DeletedAt.Valid,
		ExtraSpecs:  specsToMap(m.ExtraSpecs),
		Source:      source,
	}
	if m.VCPUWeight != nil {
		w := *m.VCPUWeight
		e.VCPUWeight = &w
	}
	return e
}

// flavorRequestToModel 将创建请求转换为 model.Flavor 并填充默认值
func flavorRequestToModel(req *entity.CreateFlavorRequest) *model.Flavor {
	m := &model.Flavor{
		Name:        req.Name,
		FlavorID:    req.FlavorID,
		MemoryMB:    req.MemoryMB,
		VCPUs:       req.VCPUs,
		RootGB:      req.RootGB,
		EphemeralGB: req.EphemeralGB,
		Swap:        req.Swap,
		RxTxFactor:  1.0,
		Disabled:    req.Disabled,
		IsPublic:    true,
	}
	if req.RxTxFactor != nil {
		m.RxTxFactor = *req.RxTxFactor
	}
	if req.IsPublic != nil {
		m.IsPublic = *req.IsPublic
	}
	if req.VCPUWeight != nil {
		w := *req.VCPUWeight
		m.VCPUWeight = &w
	}
	return m
}

// cloneForMigration 复制 legacy 行用于写入主库
// 内部主键、时间戳、软删除标记和预加载的关联不随迁移复制
func cloneForMigration(legacyRow *model.Flavor) (*model.Flavor, error) {
	clone := &model.Flavor{}
	if err := copier.Copy(clone, legacyRow); err != nil {
		return nil, err
	}
	clone.ID = 0
	clone.CreatedAt = time.Time{}
	clone.UpdatedAt = time.Time{}
	clone.DeletedAt = gorm.DeletedAt{}
	clone.ExtraSpecs = nil
	return clone, nil
}

// specsToMap 把 extra spec 关联行拍平成 map
func specsToMap(specs []model.FlavorExtraSpec) map[string]string {
	result := make(map[string]string, len(specs))
	for _, spec := range specs {
		result[spec.Key] = spec.Value
	}
	return result
}

// projectIDs 取授权行的 project_id 列表，保持顺序
func projectIDs(grants []model.FlavorProject) []string {
	result := make([]string, 0, len(grants))
	for _, grant := range grants {
		result = append(result, grant.ProjectID)
	}
	return result
}
