// Package entity 定义业务实体
package entity

// FlavorSource 标记记录来自哪个库
// 迁移完成、legacy 路径下线后只剩 primary
type FlavorSource string

const (
	// SourcePrimary 记录来自主库（API 库）
	SourcePrimary FlavorSource = "primary"
	// SourceLegacy 记录来自 legacy cell 库
	SourceLegacy FlavorSource = "legacy"
)

// Flavor 实例规格
type Flavor struct {
	ID          uint              `json:"id"`                    // 库内自增主键，迁移后会变化
	Name        string            `json:"name"`                  // 规格名称
	FlavorID    string            `json:"flavorid"`              // 业务主键，跨库稳定
	MemoryMB    int               `json:"memory_mb"`             // 内存大小（MB）
	VCPUs       int               `json:"vcpus"`                 // 虚拟 CPU 数量
	RootGB      int               `json:"root_gb"`               // 根磁盘大小（GB）
	EphemeralGB int               `json:"ephemeral_gb"`          // 临时磁盘大小（GB）
	Swap        int               `json:"swap"`                  // Swap 大小（MB）
	RxTxFactor  float64           `json:"rxtx_factor"`           // 网络带宽因子，默认 1.0
	VCPUWeight  *int              `json:"vcpu_weight,omitempty"` // 可为空
	Disabled    bool              `json:"disabled"`              // 是否禁用
	IsPublic    bool              `json:"is_public"`             // 是否公开
	Deleted     bool              `json:"deleted,omitempty"`     // 软删除标记（read_deleted=yes/only 时可见）
	ExtraSpecs  map[string]string `json:"extra_specs"`           // 扩展属性
	Projects    []string          `json:"projects,omitempty"`    // 已授权的项目
	Source      FlavorSource      `json:"source"`                // 记录来源库

	// 最近一次加载时的快照，Save 通过对比快照计算差量。
	// 替代动态 dirty-tracking：只有 ExtraSpecs 和 Projects 允许变更。
	orig *flavorSnapshot
}

// flavorSnapshot 加载时的字段快照
type flavorSnapshot struct {
	name        string
	flavorID    string
	memoryMB    int
	vcpus       int
	rootGB      int
	ephemeralGB int
	swap        int
	rxtxFactor  float64
	vcpuWeight  *int
	disabled    bool
	isPublic    bool
	extraSpecs  map[string]string
	projects    []string
}

// ResetChanges 用当前状态重建快照
// 加载和保存成功之后调用
func (f *Flavor) ResetChanges() {
	snap := &flavorSnapshot{
		name:        f.Name,
		flavorID:    f.FlavorID,
		memoryMB:    f.MemoryMB,
		vcpus:       f.VCPUs,
		rootGB:      f.RootGB,
		ephemeralGB: f.EphemeralGB,
		swap:        f.Swap,
		rxtxFactor:  f.RxTxFactor,
		disabled:    f.Disabled,
		isPublic:    f.IsPublic,
		extraSpecs:  make(map[string]string, len(f.ExtraSpecs)),
		projects:    append([]string(nil), f.Projects...),
	}
	if f.VCPUWeight != nil {
		w := *f.VCPUWeight
		snap.vcpuWeight = &w
	}
	for k, v := range f.ExtraSpecs {
		snap.extraSpecs[k] = v
	}
	f.orig = snap
}

// Tracked 返回是否持有快照（即是否经过加载）
func (f *Flavor) Tracked() bool {
	return f.orig != nil
}

// FieldsChanged 返回标量字段相对快照是否有变更
// 标量字段是只读的，Save 发现变更会拒绝
func (f *Flavor) FieldsChanged() bool {
	o := f.orig
	if o == nil {
		return false
	}
	if f.Name != o.name || f.FlavorID != o.flavorID ||
		f.MemoryMB != o.memoryMB || f.VCPUs != o.vcpus ||
		f.RootGB != o.rootGB || f.EphemeralGB != o.ephemeralGB ||
		f.Swap != o.swap || f.RxTxFactor != o.rxtxFactor ||
		f.Disabled != o.disabled || f.IsPublic != o.isPublic {
		return true
	}
	if (f.VCPUWeight == nil) != (o.vcpuWeight == nil) {
		return true
	}
	if f.VCPUWeight != nil && *f.VCPUWeight != *o.vcpuWeight {
		return true
	}
	return false
}

// ExtraSpecChanges 计算 extra specs 相对快照的差量
// toUpsert 包含新增和值有变化的 key，toDelete 包含被移除的 key
func (f *Flavor) ExtraSpecChanges() (toUpsert map[string]string, toDelete []string) {
	if f.orig == nil {
		return nil, nil
	}
	toUpsert = make(map[string]string)
	for k, v := range f.ExtraSpecs {
		if old, ok := f.orig.extraSpecs[k]; !ok || old != v {
			toUpsert[k] = v
		}
	}
	for k := range f.orig.extraSpecs {
		if _, ok := f.ExtraSpecs[k]; !ok {
			toDelete = append(toDelete, k)
		}
	}
	return toUpsert, toDelete
}

// ProjectChanges 计算访问授权相对快照的差量
func (f *Flavor) ProjectChanges() (added, removed []string) {
	if f.orig == nil {
		return nil, nil
	}
	origSet := make(map[string]struct{}, len(f.orig.projects))
	for _, p := range f.orig.projects {
		origSet[p] = struct{}{}
	}
	curSet := make(map[string]struct{}, len(f.Projects))
	for _, p := range f.Projects {
		curSet[p] = struct{}{}
		if _, ok := origSet[p]; !ok {
			added = append(added, p)
		}
	}
	for _, p := range f.orig.projects {
		if _, ok := curSet[p]; !ok {
			removed = append(removed, p)
		}
	}
	return added, removed
}

// ProjectsPending 返回本地是否有未保存的授权变更
// AddAccess / RemoveAccess 在有未保存变更时会被拒绝
func (f *Flavor) ProjectsPending() bool {
	added, removed := f.ProjectChanges()
	return len(added) > 0 || len(removed) > 0
}

// ExtraSpecsPending 返回本地是否有未保存的 extra spec 变更
func (f *Flavor) ExtraSpecsPending() bool {
	toUpsert, toDelete := f.ExtraSpecChanges()
	return len(toUpsert) > 0 || len(toDelete) > 0
}

// FlavorAccess 规格访问授权
type FlavorAccess struct {
	FlavorID  string `json:"flavorid"`
	ProjectID string `json:"project_id"`
}
