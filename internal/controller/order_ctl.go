package controller

import (
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"shopify_sync_v1/internal/service"
)

// OrderController 渠道订单导入与履约导出
type OrderController struct {
	importer    *service.OrderImportService
	fulfillment *service.FulfillmentService
}

func NewOrderController(importer *service.OrderImportService, fulfillment *service.FulfillmentService) *OrderController {
	return &OrderController{importer: importer, fulfillment: fulfillment}
}

// ImportFile 上传渠道订单文件
// @Summary 导入渠道订单文件
// @Tags Order
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "订单 CSV"
// @Success 200 {object} service.ImportResult
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/orders/import [post]
func (c *OrderController) ImportFile(ctx *gin.Context) {
	header, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "缺少上传文件"})
		return
	}
	file, err := header.Open()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "读取上传文件失败"})
		return
	}
	defer file.Close()

	result, err := c.importer.ImportFile(ctx.Request.Context(), filepath.Base(header.Filename), file)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "订单导入完成",
		"data":    result,
	})
}

// Export 生成批量履约文件
// @Summary 生成批量履约文件
// @Tags Fulfillment
// @Produce json
// @Success 201 {object} model.FulfillmentExport
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/fulfillment/exports [post]
func (c *OrderController) Export(ctx *gin.Context) {
	export, err := c.fulfillment.ExportMarketplace(ctx.Request.Context())
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{
		"code":    201,
		"message": "履约文件已生成",
		"data":    export,
	})
}

// ListExports 履约文件列表
// @Summary 履约文件列表
// @Tags Fulfillment
// @Produce json
// @Param limit query int false "数量" default(20)
// @Success 200 {array} model.FulfillmentExport
// @Router /api/v1/fulfillment/exports [get]
func (c *OrderController) ListExports(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	exports, err := c.fulfillment.ListExports(ctx.Request.Context(), limit)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"code": 200, "data": exports})
}

// GetExport 履约文件详情
// @Summary 履约文件详情
// @Tags Fulfillment
// @Produce json
// @Param id path int true "导出ID"
// @Success 200 {object} model.FulfillmentExport
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/fulfillment/exports/{id} [get]
func (c *OrderController) GetExport(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}
	export, err := c.fulfillment.GetExport(ctx.Request.Context(), id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"code": 200, "data": export})
}

// Download 履约文件临时下载地址
// @Summary 履约文件下载地址
// @Tags Fulfillment
// @Produce json
// @Param id path int true "导出ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/fulfillment/exports/{id}/download [get]
func (c *OrderController) Download(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}
	url, err := c.fulfillment.DownloadURL(ctx.Request.Context(), id, time.Hour)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"code": 200, "data": gin.H{"url": url}})
}
