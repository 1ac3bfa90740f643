package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"shopify_sync_v1/internal/repository"
	"shopify_sync_v1/internal/service"
	"shopify_sync_v1/internal/task"
	"shopify_sync_v1/pkg/shopify"
)

// SyncController 手动触发定时任务
type SyncController struct {
	taskManager *task.TaskManager
}

// NewSyncController 创建同步控制器
func NewSyncController(taskManager *task.TaskManager) *SyncController {
	return &SyncController{taskManager: taskManager}
}

// ==================== Handler 实现 ====================

// SyncStock 库存状态同步，同步执行并返回统计
// @Summary 立即同步库存状态
// @Tags Sync
// @Produce json
// @Success 200 {object} service.StockResult
// @Failure 429 {object} map[string]interface{}
// @Router /api/v1/sync/stock [post]
func (c *SyncController) SyncStock(ctx *gin.Context) {
	result, err := c.taskManager.TriggerStockSync(ctx.Request.Context())
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "库存状态同步完成",
		"data":    result,
	})
}

// SyncCollections 集合同步
// @Summary 立即同步集合
// @Tags Sync
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/sync/collections [post]
func (c *SyncController) SyncCollections(ctx *gin.Context) {
	if err := c.taskManager.TriggerCollectionSync(ctx.Request.Context()); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"code": 200, "message": "集合同步完成"})
}

// SyncOrders 拉取店铺订单
// @Summary 立即拉取店铺订单
// @Tags Sync
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/sync/orders [post]
func (c *SyncController) SyncOrders(ctx *gin.Context) {
	if err := c.taskManager.TriggerOrderImport(ctx.Request.Context()); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"code": 200, "message": "店铺订单导入完成"})
}

// SyncFulfillment 回写店铺履约
// @Summary 立即回写店铺履约
// @Tags Sync
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/sync/fulfillment [post]
func (c *SyncController) SyncFulfillment(ctx *gin.Context) {
	if err := c.taskManager.TriggerStorefrontFulfillment(ctx.Request.Context()); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"code": 200, "message": "店铺履约回写完成"})
}

// Status 任务状态
// @Summary 定时任务状态
// @Tags Sync
// @Produce json
// @Success 200 {object} map[string]task.TaskStatus
// @Router /api/v1/sync/status [get]
func (c *SyncController) Status(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": c.taskManager.Status(),
	})
}

// ==================== 辅助函数 ====================

// writeError 按错误类型映射 HTTP 状态码
func writeError(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrUpdateInFlight),
		errors.Is(err, task.ErrTaskRunning),
		errors.Is(err, service.ErrNothingToExport):
		status = http.StatusConflict
	case errors.Is(err, task.ErrTaskDisabled),
		errors.Is(err, service.ErrInvalidListing),
		errors.Is(err, service.ErrInvalidOrderFile):
		status = http.StatusBadRequest
	case errors.Is(err, shopify.ErrTransient):
		status = http.StatusBadGateway
	}
	ctx.JSON(status, gin.H{"code": status, "message": err.Error()})
}

func parseID(ctx *gin.Context, key string) int64 {
	id, err := strconv.ParseInt(ctx.Param(key), 10, 64)
	if err != nil || id <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "无效的 ID"})
		return 0
	}
	return id
}
