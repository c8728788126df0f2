package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/jimyag/flavord/internal/flavord/entity"
	"github.com/jimyag/flavord/internal/flavord/service"
	"github.com/jimyag/flavord/pkg/ginx"
	"github.com/rs/zerolog"
)

// FlavorServiceInterface 定义 flavor 服务的接口
type FlavorServiceInterface interface {
	Create(ctx context.Context, req *entity.CreateFlavorRequest) (*entity.Flavor, error)
	ListAll(ctx context.Context, rctx entity.RequestContext, opts entity.ListFlavorsOptions) ([]entity.Flavor, error)
	GetByFlavorID(ctx context.Context, rctx entity.RequestContext, flavorID string, readDeleted entity.ReadDeleted) (*entity.Flavor, error)
	Destroy(ctx context.Context, name string) error
	AddAccess(ctx context.Context, flavor *entity.Flavor, projectID string) error
	RemoveAccess(ctx context.Context, flavor *entity.Flavor, projectID string) error
	ListAccess(ctx context.Context, flavorID string) ([]entity.FlavorAccess, error)
	GetExtraSpecs(ctx context.Context, rctx entity.RequestContext, flavorID string) (map[string]string, error)
	UpsertExtraSpecs(ctx context.Context, flavorID string, specs map[string]string) error
	DeleteExtraSpec(ctx context.Context, flavorID string, key string) error
}

type Flavor struct {
	flavorService FlavorServiceInterface
}

func NewFlavor(flavorService *service.FlavorService) *Flavor {
	return &Flavor{
		flavorService: flavorService,
	}
}

func (f *Flavor) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/create-flavor", ginx.Adapt(f.CreateFlavor))
	router.POST("/describe-flavors", ginx.Adapt(f.DescribeFlavors))
	router.POST("/get-flavor", ginx.Adapt(f.GetFlavor))
	router.POST("/delete-flavor", ginx.AdaptErr(f.DeleteFlavor))
	router.POST("/add-flavor-access", ginx.Adapt(f.AddFlavorAccess))
	router.POST("/remove-flavor-access", ginx.Adapt(f.RemoveFlavorAccess))
	router.POST("/describe-flavor-access", ginx.Adapt(f.DescribeFlavorAccess))
	router.POST("/modify-flavor-extra-specs", ginx.Adapt(f.ModifyFlavorExtraSpecs))
	router.POST("/delete-flavor-extra-spec", ginx.AdaptErr(f.DeleteFlavorExtraSpec))
	router.POST("/describe-flavor-extra-specs", ginx.Adapt(f.DescribeFlavorExtraSpecs))
}

func (f *Flavor) CreateFlavor(ctx *gin.Context, req *entity.CreateFlavorRequest) (*entity.GetFlavorResponse, error) {
	logger := zerolog.Ctx(ctx.Request.Context())
	logger.Info().
		Str("name", req.Name).
		Str("flavorid", req.FlavorID).
		Msg("CreateFlavor called")

	flavor, err := f.flavorService.Create(ctx.Request.Context(), req)
	if err != nil {
		logger.Error().
			Err(err).
			Str("name", req.Name).
			Msg("Failed to create flavor")
		return nil, err
	}

	logger.Info().
		Str("flavorid", flavor.FlavorID).
		Str("name", flavor.Name).
		Msg("Flavor created successfully")

	return &entity.GetFlavorResponse{Flavor: flavor}, nil
}

func (f *Flavor) DescribeFlavors(ctx *gin.Context, req *entity.DescribeFlavorsRequest) (*entity.DescribeFlavorsResponse, error) {
	logger := zerolog.Ctx(ctx.Request.Context())

	opts := entity.ListFlavorsOptions{
		Filters: entity.FlavorFilters{
			MinMemoryMB: req.MinMemoryMB,
			MinRootGB:   req.MinRootGB,
			Disabled:    req.Disabled,
			IsPublic:    req.IsPublic,
		},
		SortKey: req.SortKey,
		SortDir: req.SortDir,
		Limit:   req.Limit,
		Marker:  req.Marker,
	}
	flavors, err := f.flavorService.ListAll(ctx.Request.Context(), requestContext(ctx), opts)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to describe flavors")
		return nil, err
	}

	logger.Info().
		Int("count", len(flavors)).
		Msg("Flavors described successfully")

	return &entity.DescribeFlavorsResponse{Flavors: flavors}, nil
}

func (f *Flavor) GetFlavor(ctx *gin.Context, req *entity.GetFlavorRequest) (*entity.GetFlavorResponse, error) {
	logger := zerolog.Ctx(ctx.Request.Context())

	flavor, err := f.flavorService.GetByFlavorID(ctx.Request.Context(), requestContext(ctx), req.FlavorID, req.ReadDeleted)
	if err != nil {
		logger.Error().
			Err(err).
			Str("flavorid", req.FlavorID).
			Msg("Failed to get flavor")
		return nil, err
	}
	return &entity.GetFlavorResponse{Flavor: flavor}, nil
}

func (f *Flavor) DeleteFlavor(ctx *gin.Context, req *entity.DeleteFlavorRequest) error {
	logger := zerolog.Ctx(ctx.Request.Context())
	logger.Info().
		Str("name", req.Name).
		Msg("DeleteFlavor called")

	if err := f.flavorService.Destroy(ctx.Request.Context(), req.Name); err != nil {
		logger.Error().
			Err(err).
			Str("name", req.Name).
			Msg("Failed to delete flavor")
		return err
	}

	logger.Info().
		Str("name", req.Name).
		Msg("Flavor deleted successfully")
	return nil
}

func (f *Flavor) AddFlavorAccess(ctx *gin.Context, req *entity.FlavorAccessRequest) (*entity.DescribeFlavorAccessResponse, error) {
	logger := zerolog.Ctx(ctx.Request.Context())
	logger.Info().
		Str("flavorid", req.FlavorID).
		Str("project_id", req.ProjectID).
		Msg("AddFlavorAccess called")

	flavor, err := f.flavorService.GetByFlavorID(ctx.Request.Context(), requestContext(ctx), req.FlavorID, entity.ReadDeletedNo)
	if err != nil {
		return nil, err
	}
	if err := f.flavorService.AddAccess(ctx.Request.Context(), flavor, req.ProjectID); err != nil {
		logger.Error().
			Err(err).
			Str("flavorid", req.FlavorID).
			Msg("Failed to add flavor access")
		return nil, err
	}
	return f.describeAccess(ctx, req.FlavorID)
}

func (f *Flavor) RemoveFlavorAccess(ctx *gin.Context, req *entity.FlavorAccessRequest) (*entity.DescribeFlavorAccessResponse, error) {
	logger := zerolog.Ctx(ctx.Request.Context())
	logger.Info().
		Str("flavorid", req.FlavorID).
		Str("project_id", req.ProjectID).
		Msg("RemoveFlavorAccess called")

	flavor, err := f.flavorService.GetByFlavorID(ctx.Request.Context(), requestContext(ctx), req.FlavorID, entity.ReadDeletedNo)
	if err != nil {
		return nil, err
	}
	if err := f.flavorService.RemoveAccess(ctx.Request.Context(), flavor, req.ProjectID); err != nil {
		logger.Error().
			Err(err).
			Str("flavorid", req.FlavorID).
			Msg("Failed to remove flavor access")
		return nil, err
	}
	return f.describeAccess(ctx, req.FlavorID)
}

func (f *Flavor) DescribeFlavorAccess(ctx *gin.Context, req *entity.GetFlavorRequest) (*entity.DescribeFlavorAccessResponse, error) {
	return f.describeAccess(ctx, req.FlavorID)
}

func (f *Flavor) describeAccess(ctx *gin.Context, flavorID string) (*entity.DescribeFlavorAccessResponse, error) {
	access, err := f.flavorService.ListAccess(ctx.Request.Context(), flavorID)
	if err != nil {
		zerolog.Ctx(ctx.Request.Context()).Error().
			Err(err).
			Str("flavorid", flavorID).
			Msg("Failed to describe flavor access")
		return nil, err
	}
	return &entity.DescribeFlavorAccessResponse{Access: access}, nil
}

func (f *Flavor) ModifyFlavorExtraSpecs(ctx *gin.Context, req *entity.ModifyFlavorExtraSpecsRequest) (*entity.DescribeFlavorExtraSpecsResponse, error) {
	logger := zerolog.Ctx(ctx.Request.Context())
	logger.Info().
		Str("flavorid", req.FlavorID).
		Int("count", len(req.ExtraSpecs)).
		Msg("ModifyFlavorExtraSpecs called")

	if err := f.flavorService.UpsertExtraSpecs(ctx.Request.Context(), req.FlavorID, req.ExtraSpecs); err != nil {
		logger.Error().
			Err(err).
			Str("flavorid", req.FlavorID).
			Msg("Failed to modify flavor extra specs")
		return nil, err
	}
	return f.DescribeFlavorExtraSpecs(ctx, &entity.GetFlavorRequest{FlavorID: req.FlavorID})
}

func (f *Flavor) DeleteFlavorExtraSpec(ctx *gin.Context, req *entity.DeleteFlavorExtraSpecRequest) error {
	logger := zerolog.Ctx(ctx.Request.Context())
	logger.Info().
		Str("flavorid", req.FlavorID).
		Str("key", req.Key).
		Msg("DeleteFlavorExtraSpec called")

	if err := f.flavorService.DeleteExtraSpec(ctx.Request.Context(), req.FlavorID, req.Key); err != nil {
		logger.Error().
			Err(err).
			Str("flavorid", req.FlavorID).
			Str("key", req.Key).
			Msg("Failed to delete flavor extra spec")
		return err
	}
	return nil
}

func (f *Flavor) DescribeFlavorExtraSpecs(ctx *gin.Context, req *entity.GetFlavorRequest) (*entity.DescribeFlavorExtraSpecsResponse, error) {
	specs, err := f.flavorService.GetExtraSpecs(ctx.Request.Context(), requestContext(ctx), req.FlavorID)
	if err != nil {
		zerolog.Ctx(ctx.Request.Context()).Error().
			Err(err).
			Str("flavorid", req.FlavorID).
			Msg("Failed to describe flavor extra specs")
		return nil, err
	}
	return &entity.DescribeFlavorExtraSpecsResponse{ExtraSpecs: specs}, nil
}
