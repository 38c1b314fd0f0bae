package fees

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate_Breakdown(t *testing.T) {
	b := Calculate(100)

	assert.Equal(t, 10.0, b.PlatformFee)
	assert.Equal(t, 1.75, b.ProcessorFee)
	assert.Equal(t, 88.25, b.ArtistEarnings)
	assert.True(t, b.Check())
}

func TestCalculate_PlatformFeeCap(t *testing.T) {
	// Выше 100 единиц 10% превышали бы потолок - комиссия фиксируется на 10.
	for _, price := range []float64{100.01, 150, 500, 2500, 99999} {
		b := Calculate(price)
		assert.Equal(t, 10.0, b.PlatformFee, "price %v", price)
	}

	// Ниже потолка процент действует как есть.
	b := Calculate(50)
	assert.Equal(t, 5.0, b.PlatformFee)
}

func TestCalculate_SumInvariant(t *testing.T) {
	prices := []float64{10, 10.01, 12.34, 25, 50, 99.99, 100, 101, 333.33, 1000, 54321.09}

	for _, p := range prices {
		b := Calculate(p)
		sum := b.PlatformFee + b.ProcessorFee + b.ArtistEarnings
		assert.InDelta(t, p, sum, 0.01, "price %v", p)
		assert.True(t, b.Check(), "price %v", p)
	}
}

func TestCalculate_MinimumPrice(t *testing.T) {
	// Минимальную цену проверяет создание лота; калькулятор обязан
	// оставаться детерминированным даже для значений ниже минимума.
	b := Calculate(MinSalePrice)
	assert.True(t, b.Check())
	assert.Greater(t, b.ArtistEarnings, 0.0)
}

func TestCalculate_RoundingStable(t *testing.T) {
	// Цены с "неудобными" дробями не должны ломать инвариант суммы.
	for p := 10.0; p < 200; p += 0.07 {
		b := Calculate(p)
		sum := b.PlatformFee + b.ProcessorFee + b.ArtistEarnings
		if math.Abs(sum-b.SalePrice) > 0.011 {
			t.Fatalf("rounding drift at price %v: sum %v", p, sum)
		}
	}
}
