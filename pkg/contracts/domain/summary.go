package domain

// SummaryKey identifies one vendor/brand pair in the derived summary.
type SummaryKey struct {
	VendorNumber int64 `json:"vendor_number"`
	Brand        int64 `json:"brand"`
}

// VendorSummary is one row of the derived vendor_sales_summary relation.
// It is fully owned by the aggregation engine and recomputed each run.
type VendorSummary struct {
	VendorNumber          int64   `json:"vendor_number" csv:"VendorNumber"`
	VendorName            string  `json:"vendor_name" csv:"VendorName"`
	Brand                 int64   `json:"brand" csv:"Brand"`
	Description           string  `json:"description" csv:"Description"`
	PurchasePrice         float64 `json:"purchase_price" csv:"PurchasePrice"`
	Volume                float64 `json:"volume" csv:"Volume"`
	ActualPrice           float64 `json:"actual_price" csv:"ActualPrice"`
	TotalPurchaseQuantity int64   `json:"total_purchase_quantity" csv:"TotalPurchaseQuantity"`
	TotalPurchaseDollars  float64 `json:"total_purchase_dollars" csv:"TotalPurchaseDollars"`
	TotalSalesQuantity    int64   `json:"total_sales_quantity" csv:"TotalSalesQuantity"`
	TotalSalesDollars     float64 `json:"total_sales_dollars" csv:"TotalSalesDollars"`
	TotalSalesPrice       float64 `json:"total_sales_price" csv:"TotalSalesPrice"`
	TotalExciseTax        float64 `json:"total_excise_tax" csv:"TotalExciseTax"`
	FreightCost           float64 `json:"freight_cost" csv:"FreightCost"`
	GrossProfit           float64 `json:"gross_profit" csv:"GrossProfit"`
	ProfitMargin          float64 `json:"profit_margin" csv:"ProfitMargin"`
	StockTurnover         float64 `json:"stock_turnover" csv:"StockTurnover"`
	SalesToPurchaseRatio  float64 `json:"sales_to_purchase_ratio" csv:"Sales_To_Purchase_Ratio"`
}

// Key returns the vendor/brand identity of the row.
func (s VendorSummary) Key() SummaryKey {
	return SummaryKey{VendorNumber: s.VendorNumber, Brand: s.Brand}
}
