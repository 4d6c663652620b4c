// Package http 贷款生成服务的 HTTP 接口
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ww-care/bank-data-simulation/internal/loan/application"
	"github.com/ww-care/bank-data-simulation/internal/loan/domain"
	"github.com/ww-care/bank-data-simulation/internal/loan/infrastructure/persistence/mysql"
)

// Handler 贷款生成 HTTP 处理器
type Handler struct {
	app *application.Service
}

// NewHandler 创建处理器并注册路由
func NewHandler(r *gin.Engine, app *application.Service) *Handler {
	h := &Handler{app: app}

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/loans/generate", h.GenerateLoan)
		v1.POST("/loans/batches", h.GenerateBatch)
		v1.GET("/loans/batches/:id", h.GetBatch)
		v1.GET("/loans/:id", h.GetLoan)
		v1.GET("/loans", h.ListLoans)
	}
	return h
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GenerateLoan 生成单笔贷款记录
func (h *Handler) GenerateLoan(c *gin.Context) {
	var cmd application.GenerateLoanCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	loan, err := h.app.Command.GenerateLoan(c.Request.Context(), cmd)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidDateRange) ||
			errors.Is(err, domain.ErrInvalidAmount) ||
			errors.Is(err, domain.ErrInvalidTerm) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, loan)
}

// GenerateBatch 启动批量生成
func (h *Handler) GenerateBatch(c *gin.Context) {
	var cmd application.GenerateBatchCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batch, err := h.app.Command.GenerateBatch(c.Request.Context(), cmd)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidDateRange) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, batch)
}

// GetLoan 查询单笔贷款记录
func (h *Handler) GetLoan(c *gin.Context) {
	loan, err := h.app.Query.GetLoan(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, mysql.ErrLoanNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "loan not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, loan)
}

// ListLoans 分页查询贷款记录
func (h *Handler) ListLoans(c *gin.Context) {
	var query application.ListLoansQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.app.Query.ListLoans(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetBatch 查询批次进度
func (h *Handler) GetBatch(c *gin.Context) {
	batch, err := h.app.Query.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, mysql.ErrBatchNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, batch)
}
