package apierror

// flavor 服务的预定义错误
// 错误码与存储层无关，repository / legacy / service 统一使用
var (
	// ErrFlavorNotFound 指定的 flavor 不存在或对调用方不可见
	ErrFlavorNotFound = &Error{
		Code:       "FlavorNotFound",
		Message:    "The specified flavor does not exist.",
		HTTPStatus: 404,
	}

	// ErrFlavorNotFoundByName 按名称查找的 flavor 不存在
	ErrFlavorNotFoundByName = &Error{
		Code:       "FlavorNotFoundByName",
		Message:    "The flavor with the specified name does not exist.",
		HTTPStatus: 404,
	}

	// ErrFlavorIDExists flavorid 与未删除记录冲突
	ErrFlavorIDExists = &Error{
		Code:       "FlavorIdExists",
		Message:    "A flavor with the specified flavorid already exists.",
		HTTPStatus: 409,
	}

	// ErrFlavorExists name 与未删除记录冲突
	ErrFlavorExists = &Error{
		Code:       "FlavorExists",
		Message:    "A flavor with the specified name already exists.",
		HTTPStatus: 409,
	}

	// ErrFlavorAccessExists 同一 (flavor, project) 的授权已存在
	ErrFlavorAccessExists = &Error{
		Code:       "FlavorAccessExists",
		Message:    "The project already has access to the specified flavor.",
		HTTPStatus: 409,
	}

	// ErrFlavorAccessNotFound 要移除的授权不存在
	ErrFlavorAccessNotFound = &Error{
		Code:       "FlavorAccessNotFound",
		Message:    "The project does not have access to the specified flavor.",
		HTTPStatus: 404,
	}

	// ErrFlavorExtraSpecsNotFound 要删除的 extra spec key 不存在
	ErrFlavorExtraSpecsNotFound = &Error{
		Code:       "FlavorExtraSpecsNotFound",
		Message:    "The specified extra spec key does not exist for this flavor.",
		HTTPStatus: 404,
	}

	// ErrFlavorExtraSpecUpdateFailed extra spec 写入重试次数耗尽
	ErrFlavorExtraSpecUpdateFailed = &Error{
		Code:       "FlavorExtraSpecUpdateFailed",
		Message:    "Updating extra specs failed after retries, another writer kept racing the insert.",
		HTTPStatus: 409,
	}

	// ErrMarkerNotFound 分页 marker 在两个库中都不存在
	ErrMarkerNotFound = &Error{
		Code:       "MarkerNotFound",
		Message:    "The specified pagination marker could not be found.",
		HTTPStatus: 400,
	}

	// ErrFlavorActionError 非法的状态变更，例如修改只读字段，
	// 或在本地有未提交变更时调用 add/remove access
	ErrFlavorActionError = &Error{
		Code:       "FlavorActionError",
		Message:    "The requested action cannot be performed in the current object state.",
		HTTPStatus: 400,
	}

	// ErrInvalidParameter 请求参数非法
	ErrInvalidParameter = &Error{
		Code:       "InvalidParameter",
		Message:    "A parameter specified in the request is not valid.",
		HTTPStatus: 400,
	}

	// ErrInternalError 内部错误
	ErrInternalError = &Error{
		Code:       "InternalError",
		Message:    "An internal error has occurred. Retry your request later.",
		HTTPStatus: 500,
	}
)
