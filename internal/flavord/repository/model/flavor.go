package model

import (
	"time"

	"gorm.io/gorm"
)

// Flavor 实例规格表
//
// flavorid 是业务主键（跨库唯一、迁移期间两个库可能各有一份），
// id 是库内自增主键。flavorid 和 name 的唯一性只在未删除记录中保证，
// 由 repository.createIndexes 创建的部分唯一索引约束。
type Flavor struct {
	ID          uint           `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Name        string         `gorm:"type:text;not null;column:name" json:"name"`                                     // 规格名称，未删除记录中唯一
	FlavorID    string         `gorm:"type:text;not null;index:idx_flavors_flavorid;column:flavorid" json:"flavorid"`  // 业务主键，如 m1.small 或 f-{id}
	MemoryMB    int            `gorm:"type:integer;not null;column:memory_mb" json:"memory_mb"`                        // 内存大小（MB）
	VCPUs       int            `gorm:"type:integer;not null;column:vcpus" json:"vcpus"`                                // 虚拟 CPU 数量
	RootGB      int            `gorm:"type:integer;column:root_gb" json:"root_gb"`                                     // 根磁盘大小（GB）
	EphemeralGB int            `gorm:"type:integer;column:ephemeral_gb" json:"ephemeral_gb"`                           // 临时磁盘大小（GB）
	Swap        int            `gorm:"type:integer;not null;default:0;column:swap" json:"swap"`                        // Swap 大小（MB）
	RxTxFactor  float64        `gorm:"type:real;default:1;column:rxtx_factor" json:"rxtx_factor"`                      // 网络带宽因子
	VCPUWeight  *int           `gorm:"type:integer;column:vcpu_weight" json:"vcpu_weight,omitempty"`                   // 可为空
	Disabled    bool           `gorm:"type:boolean;not null;default:0;column:disabled" json:"disabled"`                // 是否禁用
	IsPublic    bool           `gorm:"type:boolean;not null;default:1;column:is_public" json:"is_public"`              // 是否公开
	CreatedAt   time.Time      `gorm:"type:datetime;not null;column:created_at" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"type:datetime;not null;column:updated_at" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"type:datetime;index:idx_flavors_deleted_at;column:deleted_at" json:"deleted_at,omitempty"` // 软删除

	// 预加载的 extra specs，随 Flavor 一起查询
	ExtraSpecs []FlavorExtraSpec `gorm:"foreignKey:FlavorRef" json:"extra_specs,omitempty"`
}

// TableName 指定表名
func (Flavor) TableName() string {
	return "flavors"
}

// FlavorExtraSpec 规格扩展属性表（key/value）
//
// (flavor_id, key) 在未删除记录中唯一。Flavor 删除时级联软删除。
type FlavorExtraSpec struct {
	ID        uint           `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	FlavorRef uint           `gorm:"type:integer;not null;index:idx_flavor_extra_specs_flavor_id;column:flavor_id" json:"flavor_id"` // 关联 flavors.id
	Key       string         `gorm:"type:text;not null;column:key" json:"key"`
	Value     string         `gorm:"type:text;not null;column:value" json:"value"`
	CreatedAt time.Time      `gorm:"type:datetime;not null;column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"type:datetime;not null;column:updated_at" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"type:datetime;index:idx_flavor_extra_specs_deleted_at;column:deleted_at" json:"deleted_at,omitempty"` // 软删除
}

// TableName 指定表名
func (FlavorExtraSpec) TableName() string {
	return "flavor_extra_specs"
}

// FlavorProject 规格访问授权表（项目级）
//
// (flavor_id, project_id) 在未删除记录中唯一。Flavor 删除时级联软删除。
type FlavorProject struct {
	ID        uint           `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	FlavorRef uint           `gorm:"type:integer;not null;index:idx_flavor_projects_flavor_id;column:flavor_id" json:"flavor_id"` // 关联 flavors.id
	ProjectID string         `gorm:"type:text;not null;column:project_id" json:"project_id"`
	CreatedAt time.Time      `gorm:"type:datetime;not null;column:created_at" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"type:datetime;index:idx_flavor_projects_deleted_at;column:deleted_at" json:"deleted_at,omitempty"` // 软删除
}

// TableName 指定表名
func (FlavorProject) TableName() string {
	return "flavor_projects"
}
