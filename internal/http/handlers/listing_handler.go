package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/artmarket-backend/internal/dto"
	"github.com/ignatzorin/artmarket-backend/internal/fees"
	"github.com/ignatzorin/artmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/artmarket-backend/internal/service"
)

// ListingHandler управляет лотами и ставками.
type ListingHandler struct {
	svc *service.ListingService
}

// NewListingHandler создаёт новый хэндлер.
func NewListingHandler(svc *service.ListingService) *ListingHandler {
	return &ListingHandler{svc: svc}
}

// Create обрабатывает POST /listings.
func (h *ListingHandler) Create(c *gin.Context) {
	artistID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	listing, err := h.svc.Create(c.Request.Context(), artistID, service.CreateListingInput{
		Title:           req.Title,
		Description:     req.Description,
		Price:           req.Price,
		ShippingCost:    req.ShippingCost,
		ListingType:     req.ListingType,
		AuctionEndsAt:   req.AuctionEndsAt,
		MinBidIncrement: req.MinBidIncrement,
		Quantity:        req.Quantity,
		CoverMediaID:    req.CoverMediaID,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, listing)
}

// Get обрабатывает GET /listings/:id.
func (h *ListingHandler) Get(c *gin.Context) {
	listingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	listing, err := h.svc.Get(c.Request.Context(), listingID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, listing)
}

// List обрабатывает GET /listings.
func (h *ListingHandler) List(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	listings, err := h.svc.List(c.Request.Context(), c.Query("status"), c.Query("type"), limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{Items: listings, Limit: limit, Offset: offset})
}

// PlaceBid обрабатывает POST /listings/:id/bids.
func (h *ListingHandler) PlaceBid(c *gin.Context) {
	bidderID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	listingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	bid, err := h.svc.PlaceBid(c.Request.Context(), bidderID, listingID, req.Amount)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, bid)
}

// ListBids обрабатывает GET /listings/:id/bids.
func (h *ListingHandler) ListBids(c *gin.Context) {
	listingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	bids, err := h.svc.Bids(c.Request.Context(), listingID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, bids)
}

// FeePreview обрабатывает GET /fees/preview?price=...
// Показывает художнику разбивку комиссий до публикации лота.
func (h *ListingHandler) FeePreview(c *gin.Context) {
	var query struct {
		Price float64 `form:"price" binding:"required"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		common.RespondBadRequest(c, "параметр price обязателен")
		return
	}
	if query.Price < fees.MinSalePrice {
		common.RespondBadRequest(c, "цена ниже минимальной")
		return
	}

	breakdown := fees.Calculate(query.Price)
	c.JSON(http.StatusOK, dto.FeePreviewResponse{
		SalePrice:      breakdown.SalePrice,
		PlatformFee:    breakdown.PlatformFee,
		ProcessorFee:   breakdown.ProcessorFee,
		ArtistEarnings: breakdown.ArtistEarnings,
	})
}
