package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jimyag/flavord/internal/flavord/entity"
	"github.com/jimyag/flavord/internal/flavord/service"
	"github.com/jimyag/flavord/pkg/ginx"
	"github.com/jimyag/flavord/pkg/idgen"
	"github.com/rs/zerolog"
)

type API struct {
	engine *gin.Engine
	server *http.Server

	flavor *Flavor
}

func New(flavorService *service.FlavorService, addr string) (*API, error) {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	api := &API{
		engine: engine,
		flavor: NewFlavor(flavorService),
	}
	api.flavor.RegisterRoutes(engine.Group("/api"))
	api.server = &http.Server{
		Addr:    addr,
		Handler: engine,
	}
	return api, nil
}

func (a *API) Run(ctx context.Context) error {
	err := a.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (a *API) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

// Name 实现 grace.Grace 接口
func (a *API) Name() string {
	return "Flavor API"
}

// requestLogger 给每个请求生成 request id 并挂到日志上下文
func requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		requestID, err := idgen.GenerateRequestID()
		if err == nil {
			logger := zerolog.Ctx(ctx.Request.Context()).With().
				Str("request_id", requestID).
				Logger()
			ctx.Request = ctx.Request.WithContext(logger.WithContext(ctx.Request.Context()))
			ctx.Set(ginx.RequestIDKey, requestID)
			ctx.Header("X-Request-ID", requestID)
		}
		ctx.Next()
	}
}

// requestContext 从请求头取调用方身份
// X-Project-ID 是调用方项目，X-Is-Admin 为 true 时跳过可见性过滤
func requestContext(ctx *gin.Context) entity.RequestContext {
	isAdmin, _ := strconv.ParseBool(ctx.GetHeader("X-Is-Admin"))
	return entity.RequestContext{
		ProjectID: ctx.GetHeader("X-Project-ID"),
		IsAdmin:   isAdmin,
	}
}
