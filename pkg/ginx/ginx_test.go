package ginx_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jimyag/flavord/pkg/apierror"
	"github.com/jimyag/flavord/pkg/ginx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoArgs 用于测试 IsValid 校验钩子
type echoArgs struct {
	Name string `json:"name"`
}

func (args *echoArgs) IsValid() error {
	if args.Name == "" {
		return apierror.ErrInvalidParameter.WithMessagef("missing or invalid field: name")
	}
	return nil
}

type echoResp struct {
	Greeting string `json:"greeting"`
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestAdapt(t *testing.T) {
	t.Parallel()

	router := newRouter()
	router.POST("/echo", ginx.Adapt(func(ctx *gin.Context, args *echoArgs) (*echoResp, error) {
		return &echoResp{Greeting: "hello " + args.Name}, nil
	}))
	router.POST("/fail", ginx.Adapt(func(ctx *gin.Context, args *echoArgs) (*echoResp, error) {
		return nil, apierror.ErrFlavorNotFound.WithMessagef("flavor %q not found", args.Name)
	}))

	t.Run("Binds JSON body and renders response", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"name":"world"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp echoResp
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "hello world", resp.Greeting)
	})

	t.Run("IsValid failure returns 400", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Coded errors carry their own status", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/fail", strings.NewReader(`{"name":"ghost"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		var resp apierror.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "FlavorNotFound", resp.Errors[0].Code)
	})

	t.Run("Error response carries the request id from the context", func(t *testing.T) {
		withID := newRouter()
		withID.Use(func(ctx *gin.Context) {
			ctx.Set(ginx.RequestIDKey, "req-123")
			ctx.Next()
		})
		withID.POST("/fail", ginx.Adapt(func(ctx *gin.Context, args *echoArgs) (*echoResp, error) {
			return nil, apierror.ErrFlavorNotFound.WithMessagef("flavor %q not found", args.Name)
		}))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/fail", strings.NewReader(`{"name":"ghost"}`))
		req.Header.Set("Content-Type", "application/json")
		withID.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		var resp apierror.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "req-123", resp.RequestID)
	})
}

func TestAdaptErr(t *testing.T) {
	t.Parallel()

	router := newRouter()
	router.POST("/delete", ginx.AdaptErr(func(ctx *gin.Context, args *echoArgs) error {
		if args.Name == "missing" {
			return apierror.ErrFlavorNotFoundByName.WithMessagef("flavor with name %q not found", args.Name)
		}
		return nil
	}))

	t.Run("Success returns 204", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/delete", strings.NewReader(`{"name":"ok"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("Error status comes from the error", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/delete", strings.NewReader(`{"name":"missing"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
