package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/artmarket-backend/internal/dto"
	"github.com/ignatzorin/artmarket-backend/internal/http/handlers/common"
	"github.com/ignatzorin/artmarket-backend/internal/logger"
	"github.com/ignatzorin/artmarket-backend/internal/service"
)

// PaymentHandler принимает вебхуки платёжного провайдера.
type PaymentHandler struct {
	orders *service.OrderService
}

func NewPaymentHandler(orders *service.OrderService) *PaymentHandler {
	return &PaymentHandler{orders: orders}
}

// Webhook обрабатывает POST /payments/webhook.
// Провайдер ретраит доставку, поэтому повторный вызов с тем же
// payment_intent_id должен вернуть 200, а не ошибку.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var req dto.PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if req.Status != "succeeded" {
		logger.Log.WithFields(logrus.Fields{
			"order_id": req.OrderID,
			"status":   req.Status,
		}).Info("платёжный вебхук проигнорирован")
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
		return
	}

	if err := h.orders.MarkPaid(c.Request.Context(), req.OrderID, req.PaymentIntentID); err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}
