package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"shopify_sync_v1/internal/service"
)

// ListingController 刊登上传与状态查询
type ListingController struct {
	svc         *service.ListingService
	tags        *service.TagService
	collections *service.CollectionService
}

func NewListingController(svc *service.ListingService, tags *service.TagService, collections *service.CollectionService) *ListingController {
	return &ListingController{svc: svc, tags: tags, collections: collections}
}

// ==================== 请求结构 ====================

// CreateListingRequest 从系列创建刊登
// prices 的 key 为 SKU ID
type CreateListingRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Prices      map[string]string `json:"prices"`
}

type SetTagsRequest struct {
	Names []string `json:"names" binding:"required"`
}

type SetCollectionsRequest struct {
	CollectionIDs []int64 `json:"collection_ids"`
}

// ==================== Handler 实现 ====================

// Upload 投递创建/更新任务，远端调用在后台执行
// @Summary 上传刊登
// @Tags Listing
// @Produce json
// @Param id path int true "刊登ID"
// @Success 202 {object} model.ShopifyUpdate
// @Failure 409 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{}
// @Router /api/v1/listings/{id}/upload [post]
func (c *ListingController) Upload(ctx *gin.Context) {
	listingID := parseID(ctx, "id")
	if listingID == 0 {
		return
	}

	update, err := c.svc.Upload(ctx.Request.Context(), listingID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusAccepted, gin.H{
		"code":    202,
		"message": "刊登任务已投递",
		"data":    update,
	})
}

// Status 最近一次更新与是否进行中
// @Summary 刊登同步状态
// @Tags Listing
// @Produce json
// @Param id path int true "刊登ID"
// @Success 200 {object} service.ListingStatus
// @Router /api/v1/listings/{id}/status [get]
func (c *ListingController) Status(ctx *gin.Context) {
	listingID := parseID(ctx, "id")
	if listingID == 0 {
		return
	}
	status, err := c.svc.ListingStatus(ctx.Request.Context(), listingID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"code": 200, "data": status})
}

// Active 远端商品是否仍存在
// @Summary 远端商品是否存在
// @Tags Listing
// @Produce json
// @Param id path int true "刊登ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/listings/{id}/active [get]
func (c *ListingController) Active(ctx *gin.Context) {
	listingID := parseID(ctx, "id")
	if listingID == 0 {
		return
	}
	active, err := c.svc.ListingIsActive(ctx.Request.Context(), listingID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"code": 200, "data": gin.H{"listing_id": listingID, "active": active}})
}

// CreateFromRange 为系列创建本地刊登
// @Summary 为系列创建刊登
// @Tags Listing
// @Accept json
// @Produce json
// @Param id path int true "系列ID"
// @Param body body CreateListingRequest true "标题、描述与价格"
// @Success 201 {object} model.ShopifyListing
// @Router /api/v1/ranges/{id}/listings [post]
func (c *ListingController) CreateFromRange(ctx *gin.Context) {
	rangeID := parseID(ctx, "id")
	if rangeID == 0 {
		return
	}
	var req CreateListingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}

	prices := make(map[int64]decimal.Decimal, len(req.Prices))
	for k, v := range req.Prices {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "无效的 SKU ID: " + k})
			return
		}
		price, err := decimal.NewFromString(v)
		if err != nil || price.IsNegative() {
			ctx.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "无效的价格: " + v})
			return
		}
		prices[id] = price
	}

	listing, err := c.svc.CreateListingFromRange(ctx.Request.Context(), rangeID, req.Title, req.Description, prices)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"code": 201, "message": "刊登已创建", "data": listing})
}

// SetTags 按名称设置刊登标签
// @Summary 设置刊登标签
// @Tags Listing
// @Accept json
// @Produce json
// @Param id path int true "刊登ID"
// @Param body body SetTagsRequest true "标签名"
// @Success 200 {array} model.ShopifyTag
// @Router /api/v1/listings/{id}/tags [put]
func (c *ListingController) SetTags(ctx *gin.Context) {
	listingID := parseID(ctx, "id")
	if listingID == 0 {
		return
	}
	var req SetTagsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}
	tags, err := c.tags.SetListingTags(ctx.Request.Context(), listingID, req.Names)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"code": 200, "data": tags})
}

// SetCollections 按远端集合 ID 设置刊登所属集合
// @Summary 设置刊登集合
// @Tags Listing
// @Accept json
// @Produce json
// @Param id path int true "刊登ID"
// @Param body body SetCollectionsRequest true "远端集合ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/listings/{id}/collections [put]
func (c *ListingController) SetCollections(ctx *gin.Context) {
	listingID := parseID(ctx, "id")
	if listingID == 0 {
		return
	}
	var req SetCollectionsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}
	if err := c.collections.SetListingCollections(ctx.Request.Context(), listingID, req.CollectionIDs); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"code": 200, "message": "刊登集合已更新"})
}
