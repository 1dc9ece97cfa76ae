// Package cost prices model invocations.
package cost

import "github.com/shopspring/decimal"

// Precision is the number of decimal places a price is stored with.
const Precision = 3

var (
	floor     = decimal.RequireFromString("0.1")
	megabytes = decimal.NewFromInt(1024 * 1024)
)

// Estimate returns the price of one invocation of a model whose artifact is
// sizeBytes long: max(0.1, size in MB), rounded to three decimals.
func Estimate(sizeBytes int64) decimal.Decimal {
	price := decimal.NewFromInt(sizeBytes).Div(megabytes)
	if price.LessThan(floor) {
		price = floor
	}
	return price.Round(Precision)
}

// Batch returns the charge for running a model priced at price over records rows.
func Batch(price decimal.Decimal, records int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(records)))
}
