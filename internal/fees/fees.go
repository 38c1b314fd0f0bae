// Package fees содержит детерминированный расчёт комиссий площадки.
package fees

import "math"

const (
	// PlatformFeeRate - доля площадки от цены продажи.
	PlatformFeeRate = 0.10
	// PlatformFeeCap - потолок комиссии площадки. Из-за потолка процент
	// комиссии убывает для дорогих работ; это осознанное решение, а не баг.
	PlatformFeeCap = 10.0

	// ProcessorFeeRate и ProcessorFeeFixed - ставка и фиксированная часть
	// комиссии платёжного провайдера.
	ProcessorFeeRate  = 0.015
	ProcessorFeeFixed = 0.25

	// MinSalePrice - минимальная цена продажи. Проверяется при создании
	// лота, а не здесь: калькулятор не валидирует вход.
	MinSalePrice = 10.0
)

// Breakdown описывает разбивку цены продажи на комиссии и выручку художника.
type Breakdown struct {
	SalePrice      float64 `json:"sale_price"`
	PlatformFee    float64 `json:"platform_fee"`
	ProcessorFee   float64 `json:"processor_fee"`
	ArtistEarnings float64 `json:"artist_earnings"`
}

// Calculate считает разбивку комиссий для цены продажи.
// Округление до копеек выполняется один раз на последнем шаге,
// чтобы не накапливать ошибку промежуточных округлений.
func Calculate(salePrice float64) Breakdown {
	platformFee := salePrice * PlatformFeeRate
	if platformFee > PlatformFeeCap {
		platformFee = PlatformFeeCap
	}

	processorFee := salePrice*ProcessorFeeRate + ProcessorFeeFixed
	earnings := salePrice - platformFee - processorFee

	return Breakdown{
		SalePrice:      round2(salePrice),
		PlatformFee:    round2(platformFee),
		ProcessorFee:   round2(processorFee),
		ArtistEarnings: round2(earnings),
	}
}

// Check проверяет инвариант: сумма частей равна цене продажи
// с точностью до копейки.
func (b Breakdown) Check() bool {
	return math.Abs(b.PlatformFee+b.ProcessorFee+b.ArtistEarnings-b.SalePrice) <= 0.01
}

// Round2 округляет сумму до копеек. Используется и вне калькулятора,
// например при расчёте частичного возврата по спору.
func Round2(v float64) float64 {
	return round2(v)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
