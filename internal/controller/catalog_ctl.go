package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopify_sync_v1/internal/service"
)

// CatalogController 标签与集合
type CatalogController struct {
	tags        *service.TagService
	collections *service.CollectionService
}

func NewCatalogController(tags *service.TagService, collections *service.CollectionService) *CatalogController {
	return &CatalogController{tags: tags, collections: collections}
}

type CreateTagRequest struct {
	Name string `json:"name" binding:"required"`
}

type ReplaceTagRequest struct {
	Names []string `json:"names" binding:"required,min=1"`
}

// ListTags 标签列表
// @Summary 标签列表
// @Tags Catalog
// @Produce json
// @Success 200 {array} model.ShopifyTag
// @Router /api/v1/tags [get]
func (c *CatalogController) ListTags(ctx *gin.Context) {
	tags, err := c.tags.List(ctx.Request.Context())
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"code": 200, "data": tags})
}

// CreateTag 创建标签，按名称幂等
// @Summary 创建标签
// @Tags Catalog
// @Accept json
// @Produce json
// @Param body body CreateTagRequest true "标签名"
// @Success 200 {object} model.ShopifyTag
// @Router /api/v1/tags [post]
func (c *CatalogController) CreateTag(ctx *gin.Context) {
	var req CreateTagRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}
	tag, err := c.tags.CreateTag(ctx.Request.Context(), req.Name)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"code": 200, "data": tag})
}

// ReplaceTag 一个标签拆成多个，已关联的刊登同步替换
// @Summary 替换标签
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path int true "标签ID"
// @Param body body ReplaceTagRequest true "新标签名"
// @Success 200 {array} model.ShopifyTag
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/tags/{id}/replace [post]
func (c *CatalogController) ReplaceTag(ctx *gin.Context) {
	tagID := parseID(ctx, "id")
	if tagID == 0 {
		return
	}
	var req ReplaceTagRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}
	tags, err := c.tags.ReplaceTag(ctx.Request.Context(), tagID, req.Names)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"code": 200, "message": "标签已替换", "data": tags})
}

// ListCollections 本地集合镜像
// @Summary 集合列表
// @Tags Catalog
// @Produce json
// @Success 200 {array} model.ShopifyCollection
// @Router /api/v1/collections [get]
func (c *CatalogController) ListCollections(ctx *gin.Context) {
	collections, err := c.collections.List(ctx.Request.Context())
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"code": 200, "data": collections})
}
