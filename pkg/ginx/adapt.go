// Package ginx 提供泛型的 gin handler 适配器
//
// handler 以 func(ctx, *Req) (Resp, error) 的形式编写，
// 参数绑定、IsValid 校验和响应渲染由适配器统一处理。
package ginx

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
)

// Adapt 适配有参数、有返回值和 error 的 handler
func Adapt[TArgs any, TResp any](fn func(*gin.Context, *TArgs) (TResp, error)) gin.HandlerFunc {
	var argsType TArgs
	argsTypeValue := reflect.TypeOf(argsType)

	return func(ctx *gin.Context) {
		args, err := bindAndValidate(ctx, argsTypeValue)
		if err != nil {
			renderError(ctx, http.StatusBadRequest, err)
			return
		}
		result, err := fn(ctx, args.(*TArgs))
		if err != nil {
			renderError(ctx, http.StatusInternalServerError, err)
			return
		}
		renderResponse(ctx, result)
	}
}

// AdaptErr 适配有参数、只有 error 的 handler，成功返回 204
func AdaptErr[TArgs any](fn func(*gin.Context, *TArgs) error) gin.HandlerFunc {
	var argsType TArgs
	argsTypeValue := reflect.TypeOf(argsType)

	return func(ctx *gin.Context) {
		args, err := bindAndValidate(ctx, argsTypeValue)
		if err != nil {
			renderError(ctx, http.StatusBadRequest, err)
			return
		}
		if err := fn(ctx, args.(*TArgs)); err != nil {
			renderError(ctx, http.StatusInternalServerError, err)
			return
		}
		ctx.Status(http.StatusNoContent)
	}
}

// bindAndValidate 构造参数结构体、绑定请求并执行 IsValid 校验
func bindAndValidate(ctx *gin.Context, argsType reflect.Type) (any, error) {
	args := reflect.New(argsType).Interface()
	if err := bindArgs(ctx, args); err != nil {
		return nil, err
	}
	if validator, ok := args.(interface{ IsValid() error }); ok {
		if err := validator.IsValid(); err != nil {
			return nil, err
		}
	}
	return args, nil
}

// bindArgs 绑定请求参数到 args 结构体
// 优先级：JSON body > URI 参数 > Query 参数 > Form 参数
func bindArgs(ctx *gin.Context, args any) error {
	// 不依赖 ContentLength 判断有没有 body，直接尝试绑定
	if err := ctx.ShouldBindJSON(args); err == nil {
		_ = ctx.ShouldBindUri(args)
		_ = ctx.ShouldBindQuery(args)
		return nil
	}
	if err := ctx.ShouldBindUri(args); err == nil {
		_ = ctx.ShouldBindQuery(args)
		return nil
	}
	if err := ctx.ShouldBindQuery(args); err == nil {
		return nil
	}
	return ctx.ShouldBind(args)
}
