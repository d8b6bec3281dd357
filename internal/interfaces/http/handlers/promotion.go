// internal/interfaces/http/handlers/promotion.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/bookstore-backend/internal/domain/promotion"
)

// PromotionHandler handles promotion endpoints
type PromotionHandler struct {
	promotionService *promotion.Service
}

// NewPromotionHandler creates a new promotion handler
func NewPromotionHandler(promotionService *promotion.Service) *PromotionHandler {
	return &PromotionHandler{promotionService: promotionService}
}

// ValidateCode handles POST /promotions/validate. An unusable code is a
// normal answer, reported in the body with valid=false.
func (h *PromotionHandler) ValidateCode(c *gin.Context) {
	var req promotion.ValidateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.promotionService.ValidateCode(c.Request.Context(), req.Code, req.BookIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Promotion code checked",
		"data":    result,
	})
}

// CreatePromotion handles POST /admin/promotions
func (h *PromotionHandler) CreatePromotion(c *gin.Context) {
	var req promotion.CreatePromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	p, err := h.promotionService.CreatePromotion(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Promotion created successfully",
		"data":    p,
	})
}

// ListPromotions handles GET /admin/promotions?status=
func (h *PromotionHandler) ListPromotions(c *gin.Context) {
	promotions, err := h.promotionService.ListPromotions(c.Request.Context(), promotion.Status(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Promotions retrieved successfully",
		"data":    promotions,
	})
}

// UpdateStatus handles PATCH /admin/promotions/:id/status
func (h *PromotionHandler) UpdateStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req promotion.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	p, err := h.promotionService.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Promotion status updated successfully",
		"data":    p,
	})
}
