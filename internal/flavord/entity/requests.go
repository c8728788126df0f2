package entity

import (
	"github.com/jimyag/flavord/pkg/apierror"
)

// errMissingField 构造参数校验错误
func errMissingField(name string) error {
	return apierror.ErrInvalidParameter.WithMessagef("missing or invalid field: %s", name)
}

// 排序方向
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// FlavorFilters list 查询的过滤条件，全部是 AND 关系
type FlavorFilters struct {
	MinMemoryMB *int  `json:"min_memory_mb,omitempty"` // memory_mb >=
	MinRootGB   *int  `json:"min_root_gb,omitempty"`   // root_gb >=
	Disabled    *bool `json:"disabled,omitempty"`      // disabled ==
	IsPublic    *bool `json:"is_public,omitempty"`     // is_public ==，配合项目授权的 OR 条件
}

// ListFlavorsOptions list 查询参数
type ListFlavorsOptions struct {
	Filters     FlavorFilters `json:"filters"`
	SortKey     string        `json:"sort_key,omitempty"` // 默认 flavorid
	SortDir     string        `json:"sort_dir,omitempty"` // asc / desc，默认 asc
	Limit       int           `json:"limit,omitempty"`    // 0 表示不限制
	Marker      string        `json:"marker,omitempty"`   // 上一页最后一条的 flavorid
	ReadDeleted ReadDeleted   `json:"read_deleted,omitempty"`
}

// CreateFlavorRequest 创建 flavor 请求
type CreateFlavorRequest struct {
	Name        string            `json:"name"`
	FlavorID    string            `json:"flavorid,omitempty"` // 为空时自动生成 f-{id}
	MemoryMB    int               `json:"memory_mb"`
	VCPUs       int               `json:"vcpus"`
	RootGB      int               `json:"root_gb"`
	EphemeralGB int               `json:"ephemeral_gb"`
	Swap        int               `json:"swap"`
	RxTxFactor  *float64          `json:"rxtx_factor,omitempty"` // 为空时默认 1.0
	VCPUWeight  *int              `json:"vcpu_weight,omitempty"`
	Disabled    bool              `json:"disabled"`
	IsPublic    *bool             `json:"is_public,omitempty"` // 为空时默认 true
	ExtraSpecs  map[string]string `json:"extra_specs,omitempty"`
	Projects    []string          `json:"projects,omitempty"`
}

// IsValid 校验创建请求
func (r *CreateFlavorRequest) IsValid() error {
	if r.Name == "" {
		return errMissingField("name")
	}
	if r.MemoryMB <= 0 {
		return errMissingField("memory_mb")
	}
	if r.VCPUs <= 0 {
		return errMissingField("vcpus")
	}
	return nil
}

// DescribeFlavorsRequest 查询 flavor 列表请求
type DescribeFlavorsRequest struct {
	MinMemoryMB *int   `json:"min_memory_mb,omitempty"`
	MinRootGB   *int   `json:"min_root_gb,omitempty"`
	Disabled    *bool  `json:"disabled,omitempty"`
	IsPublic    *bool  `json:"is_public,omitempty"`
	SortKey     string `json:"sort_key,omitempty"`
	SortDir     string `json:"sort_dir,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Marker      string `json:"marker,omitempty"`
}

// DescribeFlavorsResponse 查询 flavor 列表响应
type DescribeFlavorsResponse struct {
	Flavors []Flavor `json:"flavors"`
}

// GetFlavorRequest 按业务主键查询单个 flavor
type GetFlavorRequest struct {
	FlavorID    string      `json:"flavorid"`
	ReadDeleted ReadDeleted `json:"read_deleted,omitempty"`
}

// GetFlavorResponse 单个 flavor 响应
type GetFlavorResponse struct {
	Flavor *Flavor `json:"flavor"`
}

// DeleteFlavorRequest 按名称删除 flavor
type DeleteFlavorRequest struct {
	Name string `json:"name"`
}

// FlavorAccessRequest 授权变更请求
type FlavorAccessRequest struct {
	FlavorID  string `json:"flavorid"`
	ProjectID string `json:"project_id"`
}

// DescribeFlavorAccessResponse 授权列表响应
type DescribeFlavorAccessResponse struct {
	Access []FlavorAccess `json:"access"`
}

// ModifyFlavorExtraSpecsRequest 批量写入 extra specs
type ModifyFlavorExtraSpecsRequest struct {
	FlavorID   string            `json:"flavorid"`
	ExtraSpecs map[string]string `json:"extra_specs"`
}

// DeleteFlavorExtraSpecRequest 删除单个 extra spec key
type DeleteFlavorExtraSpecRequest struct {
	FlavorID string `json:"flavorid"`
	Key      string `json:"key"`
}

// DescribeFlavorExtraSpecsResponse extra specs 响应
type DescribeFlavorExtraSpecsResponse struct {
	ExtraSpecs map[string]string `json:"extra_specs"`
}
