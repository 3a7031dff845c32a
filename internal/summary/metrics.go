package summary

import (
	"math"

	"vendorperf/pkg/contracts/domain"
)

// Metric precisions. Rounding is part of the output contract: identical
// inputs must produce bit-identical summaries.
const (
	marginPrecision = 2
	ratioPrecision  = 4
)

// deriveMetrics computes the four derived metrics on a merged row and
// returns the number of zero-guard activations.
//
// Division by zero is policy, not an error: no sales means no realized
// margin, and no purchases means no turnover data. Both derive to zero.
func deriveMetrics(row *domain.VendorSummary) int64 {
	var guards int64

	row.GrossProfit = round(row.TotalSalesDollars-row.TotalPurchaseDollars, marginPrecision)

	if row.TotalSalesDollars > 0 {
		row.ProfitMargin = round(row.GrossProfit/row.TotalSalesDollars*100, marginPrecision)
	} else {
		row.ProfitMargin = 0
		guards++
	}

	if row.TotalPurchaseQuantity > 0 {
		row.StockTurnover = round(float64(row.TotalSalesQuantity)/float64(row.TotalPurchaseQuantity), ratioPrecision)
	} else {
		row.StockTurnover = 0
		guards++
	}

	if row.TotalPurchaseDollars > 0 {
		row.SalesToPurchaseRatio = round(row.TotalSalesDollars/row.TotalPurchaseDollars, ratioPrecision)
	} else {
		row.SalesToPurchaseRatio = 0
		guards++
	}

	return guards
}

func round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
