package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/artmarket-backend/internal/dto"
	"github.com/ignatzorin/artmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/artmarket-backend/internal/service"
)

// EarningsHandler отдаёт баланс художника и управляет выплатами.
type EarningsHandler struct {
	svc *service.EarningsService
}

func NewEarningsHandler(svc *service.EarningsService) *EarningsHandler {
	return &EarningsHandler{svc: svc}
}

// Balance обрабатывает GET /earnings/balance.
func (h *EarningsHandler) Balance(c *gin.Context) {
	artistID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	balance, err := h.svc.Balance(c.Request.Context(), artistID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BalanceResponse{
		Available:      balance.Available,
		Pending:        balance.Pending,
		PaidOut:        balance.PaidOut,
		NextPayoutDate: balance.NextPayoutDate.Format(time.DateOnly),
	})
}

// RequestPayout обрабатывает POST /payouts.
func (h *EarningsHandler) RequestPayout(c *gin.Context) {
	artistID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.RequestPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payout, err := h.svc.RequestPayout(c.Request.Context(), artistID, req.CardLast4, req.BankName)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, payout)
}

// ProcessPayout обрабатывает POST /admin/payouts/:id/process.
func (h *EarningsHandler) ProcessPayout(c *gin.Context) {
	payoutID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ProcessPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payout, err := h.svc.ProcessPayout(c.Request.Context(), payoutID, req.Status, req.RejectionReason)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, payout)
}

// ListPayouts обрабатывает GET /payouts.
func (h *EarningsHandler) ListPayouts(c *gin.Context) {
	artistID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	payouts, err := h.svc.ListPayouts(c.Request.Context(), artistID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{Items: payouts, Limit: limit, Offset: offset})
}
