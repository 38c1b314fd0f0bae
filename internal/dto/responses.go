package dto

import (
	"github.com/ignatzorin/artmarket-backend/internal/models"
)

// ErrorResponse — стандартный ответ с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse — стандартный ответ с сообщением и данными.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AuthResponse — ответ на регистрацию и вход.
type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

// FeePreviewResponse — разбивка комиссий для цены продажи.
type FeePreviewResponse struct {
	SalePrice      float64 `json:"sale_price"`
	PlatformFee    float64 `json:"platform_fee"`
	ProcessorFee   float64 `json:"processor_fee"`
	ArtistEarnings float64 `json:"artist_earnings"`
}

// BalanceResponse — производный баланс художника.
type BalanceResponse struct {
	Available      float64 `json:"available"`
	Pending        float64 `json:"pending"`
	PaidOut        float64 `json:"paid_out"`
	NextPayoutDate string  `json:"next_payout_date"`
}

// ListResponse — обёртка для списков с пагинацией.
type ListResponse struct {
	Items  interface{} `json:"items"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}
