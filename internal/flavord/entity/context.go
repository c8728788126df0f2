package entity

// RequestContext 调用方的授权上下文
// 非管理员只能看到 is_public 的 flavor 和自己项目被授权的 flavor
type RequestContext struct {
	ProjectID string `json:"project_id"`
	IsAdmin   bool   `json:"is_admin"`
}

// ReadDeleted 控制软删除记录的可见性
type ReadDeleted string

const (
	// ReadDeletedNo 隐藏已删除记录（默认）
	ReadDeletedNo ReadDeleted = "no"
	// ReadDeletedYes 同时返回未删除和已删除记录
	ReadDeletedYes ReadDeleted = "yes"
	// ReadDeletedOnly 只返回已删除记录
	ReadDeletedOnly ReadDeleted = "only"
)
