// Package numeric 提供下单数量相关的数值处理。
package numeric

import "github.com/shopspring/decimal"

// Truncate 向零截断到 places 位小数，从不进位。
// 以最短十进制表示为准，避免 0.29 这类值因二进制误差被截成 0.28。
func Truncate(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Truncate(places).InexactFloat64()
}
