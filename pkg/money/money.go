package money

import "github.com/shopspring/decimal"

// Commission 計算平台抽成：round(amount × rate, 2位小數, half-up)。
// Tournament 與 Ticket 都必須透過這裡計算，保證兩邊對帳一致。
func Commission(amount, rate float64) float64 {
	result, _ := decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(rate)).
		Round(2).
		Float64()
	return result
}

// Round2 金額統一取到 2 位小數 (half-up)
func Round2(amount float64) float64 {
	result, _ := decimal.NewFromFloat(amount).Round(2).Float64()
	return result
}
