// Package apierror 提供 flavord 的统一错误类型。
//
// 所有领域错误都是 *Error，携带稳定的错误码和 HTTP 状态码。
// 使用方式：
//
// 返回预定义错误：
//
//	return nil, apierror.ErrFlavorNotFound
//
// 携带上下文信息（错误码不变，errors.Is 仍然成立）：
//
//	return nil, apierror.ErrFlavorNotFound.WithMessagef("flavor %s not found", flavorID)
//
// 包装底层错误：
//
//	return nil, apierror.WrapError(apierror.ErrInternalError, "query flavors", err)
//
// 判断错误类型：
//
//	if errors.Is(err, apierror.ErrFlavorNotFound) { ... }
package apierror
