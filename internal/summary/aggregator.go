// Package summary implements the aggregation engine. It derives exactly one
// vendor_sales_summary row per vendor/brand pair from three independently
// aggregated passes over the loaded fact tables.
//
// The passes are deliberately never joined row-to-row: purchase lines, sale
// transactions, and invoice lines have different grains, and an equi-join
// between them fans out and corrupts every downstream sum. Each pass groups
// on its own key first; the groups are merged afterwards.
package summary

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	apperrors "vendorperf/internal/errors"
	"vendorperf/internal/infrastructure"
	"vendorperf/internal/store"
	"vendorperf/pkg/contracts/domain"
)

// Aggregator builds the vendor summary from the loaded store.
type Aggregator struct {
	store   *store.Store
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
}

// NewAggregator creates an aggregator over a fully loaded store.
func NewAggregator(st *store.Store, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *Aggregator {
	return &Aggregator{
		store:   st,
		logger:  logger.With(slog.String("component", "aggregator")),
		metrics: metrics,
	}
}

// purchaseAgg accumulates purchase activity for one vendor/brand pair. The
// representative fields are carried from the first line seen.
type purchaseAgg struct {
	vendorName    string
	description   string
	purchasePrice float64
	volume        float64
	actualPrice   float64
	quantity      int64
	dollars       float64
}

// salesAgg accumulates sale activity for one vendor/brand pair.
type salesAgg struct {
	vendorName string
	quantity   int64
	dollars    float64
	price      float64
	exciseTax  float64
}

// masterRow is the product-master slice needed to enrich sales-only pairs.
type masterRow struct {
	description   string
	purchasePrice float64
	volume        float64
	actualPrice   float64
	vendorName    string
}

// Build streams the fact tables, merges the per-key aggregates, derives the
// ratio metrics, and returns the summary rows in publish order.
func (a *Aggregator) Build(ctx context.Context) ([]domain.VendorSummary, domain.AggregationStats, error) {
	var stats domain.AggregationStats

	purchases, err := a.aggregatePurchases(ctx)
	if err != nil {
		return nil, stats, err
	}
	sales, err := a.aggregateSales(ctx)
	if err != nil {
		return nil, stats, err
	}
	freight, err := a.aggregateFreight(ctx)
	if err != nil {
		return nil, stats, err
	}
	master, err := a.loadMaster(ctx)
	if err != nil {
		return nil, stats, err
	}

	rows := make([]domain.VendorSummary, 0, len(purchases))

	for key, p := range purchases {
		row := domain.VendorSummary{
			VendorNumber:          key.VendorNumber,
			VendorName:            strings.TrimSpace(p.vendorName),
			Brand:                 key.Brand,
			Description:           strings.TrimSpace(p.description),
			PurchasePrice:         p.purchasePrice,
			Volume:                p.volume,
			ActualPrice:           p.actualPrice,
			TotalPurchaseQuantity: p.quantity,
			TotalPurchaseDollars:  p.dollars,
			FreightCost:           freight[key.VendorNumber],
		}
		if s, ok := sales[key]; ok {
			row.TotalSalesQuantity = s.quantity
			row.TotalSalesDollars = s.dollars
			row.TotalSalesPrice = s.price
			row.TotalExciseTax = s.exciseTax
		}
		rows = a.appendRow(ctx, rows, row, &stats)
	}

	// Pairs with recorded sales but no purchase activity still belong in
	// the summary; their purchase aggregates default to zero. They can only
	// be enriched when the brand resolves in the product master.
	for key, s := range sales {
		if _, ok := purchases[key]; ok {
			continue
		}
		m, ok := master[key.Brand]
		if !ok {
			stats.UnresolvedSalesPairs++
			a.logger.WarnContext(ctx, "sales pair dropped, brand not in product master",
				slog.Int64("vendor_number", key.VendorNumber),
				slog.Int64("brand", key.Brand))
			continue
		}
		stats.SalesOnlyPairs++

		vendorName := strings.TrimSpace(s.vendorName)
		if vendorName == "" {
			vendorName = strings.TrimSpace(m.vendorName)
		}
		row := domain.VendorSummary{
			VendorNumber:       key.VendorNumber,
			VendorName:         vendorName,
			Brand:              key.Brand,
			Description:        strings.TrimSpace(m.description),
			PurchasePrice:      m.purchasePrice,
			Volume:             m.volume,
			ActualPrice:        m.actualPrice,
			TotalSalesQuantity: s.quantity,
			TotalSalesDollars:  s.dollars,
			TotalSalesPrice:    s.price,
			TotalExciseTax:     s.exciseTax,
			FreightCost:        freight[key.VendorNumber],
		}
		rows = a.appendRow(ctx, rows, row, &stats)
	}

	// Deterministic publish order: concentration first, then key.
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalPurchaseDollars != rows[j].TotalPurchaseDollars {
			return rows[i].TotalPurchaseDollars > rows[j].TotalPurchaseDollars
		}
		if rows[i].VendorNumber != rows[j].VendorNumber {
			return rows[i].VendorNumber < rows[j].VendorNumber
		}
		return rows[i].Brand < rows[j].Brand
	})

	stats.SummaryRows = int64(len(rows))

	a.logger.InfoContext(ctx, "vendor summary built",
		slog.Int("rows", len(rows)),
		slog.Int64("excluded_master_rows", stats.ExcludedMasterRows),
		slog.Int64("zero_guard_activations", stats.ZeroGuardActivations),
		slog.Int64("sales_only_pairs", stats.SalesOnlyPairs),
		slog.Int64("unresolved_sales_pairs", stats.UnresolvedSalesPairs))

	return rows, stats, nil
}

// appendRow applies the master-data validity rule, derives the ratio
// metrics, and appends the row.
func (a *Aggregator) appendRow(ctx context.Context, rows []domain.VendorSummary, row domain.VendorSummary, stats *domain.AggregationStats) []domain.VendorSummary {
	if row.ActualPrice <= 0 || row.Volume <= 0 {
		stats.ExcludedMasterRows++
		if a.metrics != nil {
			a.metrics.ExcludedRows.Inc()
		}
		a.logger.WarnContext(ctx, "row excluded for invalid master data",
			slog.Int64("vendor_number", row.VendorNumber),
			slog.Int64("brand", row.Brand),
			slog.Float64("actual_price", row.ActualPrice),
			slog.Float64("volume", row.Volume))
		return rows
	}

	guards := deriveMetrics(&row)
	stats.ZeroGuardActivations += guards
	if a.metrics != nil && guards > 0 {
		a.metrics.ZeroGuards.Add(float64(guards))
	}

	return append(rows, row)
}

// aggregatePurchases streams purchase lines joined against the product
// master dimension and groups them by vendor/brand. The dimension join is
// safe: purchase_prices has one row per brand, so it cannot fan out.
func (a *Aggregator) aggregatePurchases(ctx context.Context) (map[domain.SummaryKey]*purchaseAgg, error) {
	const query = `
		SELECT p.VendorNumber, p.VendorName, p.Brand, p.Description,
		       p.PurchasePrice, pp.Volume, pp.Price, p.Quantity, p.Dollars
		FROM purchases p
		JOIN purchase_prices pp ON pp.Brand = p.Brand`

	rows, err := a.store.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewStorageError("stream purchase lines", err)
	}
	defer rows.Close()

	aggs := make(map[domain.SummaryKey]*purchaseAgg)
	for rows.Next() {
		var (
			key           domain.SummaryKey
			vendorName    string
			description   string
			purchasePrice float64
			volume        float64
			actualPrice   float64
			quantity      int64
			dollars       float64
		)
		if err := rows.Scan(&key.VendorNumber, &vendorName, &key.Brand, &description,
			&purchasePrice, &volume, &actualPrice, &quantity, &dollars); err != nil {
			return nil, apperrors.NewStorageError("scan purchase line", err)
		}

		agg, ok := aggs[key]
		if !ok {
			agg = &purchaseAgg{
				vendorName:    vendorName,
				description:   description,
				purchasePrice: purchasePrice,
				volume:        volume,
				actualPrice:   actualPrice,
			}
			aggs[key] = agg
		}
		agg.quantity += quantity
		agg.dollars += dollars
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("stream purchase lines", err)
	}
	return aggs, nil
}

// aggregateSales is a separate pass over the sale transactions. It must not
// be a row-level join with purchases: the grains differ and a join
// multiplies rows on both sides.
func (a *Aggregator) aggregateSales(ctx context.Context) (map[domain.SummaryKey]*salesAgg, error) {
	const query = `
		SELECT VendorNo, VendorName, Brand, SalesQuantity, SalesDollars, SalesPrice, ExciseTax
		FROM sales`

	rows, err := a.store.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewStorageError("stream sale transactions", err)
	}
	defer rows.Close()

	aggs := make(map[domain.SummaryKey]*salesAgg)
	for rows.Next() {
		var (
			key        domain.SummaryKey
			vendorName string
			quantity   int64
			dollars    float64
			price      float64
			exciseTax  float64
		)
		if err := rows.Scan(&key.VendorNumber, &vendorName, &key.Brand,
			&quantity, &dollars, &price, &exciseTax); err != nil {
			return nil, apperrors.NewStorageError("scan sale transaction", err)
		}

		agg, ok := aggs[key]
		if !ok {
			agg = &salesAgg{vendorName: vendorName}
			aggs[key] = agg
		}
		agg.quantity += quantity
		agg.dollars += dollars
		agg.price += price
		agg.exciseTax += exciseTax
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("stream sale transactions", err)
	}
	return aggs, nil
}

// aggregateFreight sums freight once per invoice line, per vendor, before
// any merge with purchase data. Joining freight against per-line purchase
// rows would double-count it once per duplicate purchase line.
func (a *Aggregator) aggregateFreight(ctx context.Context) (map[int64]float64, error) {
	const query = `SELECT VendorNumber, Freight FROM vendor_invoice`

	rows, err := a.store.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewStorageError("stream invoice lines", err)
	}
	defer rows.Close()

	freight := make(map[int64]float64)
	for rows.Next() {
		var vendor int64
		var amount float64
		if err := rows.Scan(&vendor, &amount); err != nil {
			return nil, apperrors.NewStorageError("scan invoice line", err)
		}
		freight[vendor] += amount
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("stream invoice lines", err)
	}
	return freight, nil
}

// loadMaster reads the product master into memory for enriching sales-only
// pairs. The master is the smallest relation by far.
func (a *Aggregator) loadMaster(ctx context.Context) (map[int64]masterRow, error) {
	const query = `
		SELECT Brand, Description, PurchasePrice, Volume, Price, VendorName
		FROM purchase_prices`

	rows, err := a.store.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewStorageError("load product master", err)
	}
	defer rows.Close()

	master := make(map[int64]masterRow)
	for rows.Next() {
		var brand int64
		var m masterRow
		if err := rows.Scan(&brand, &m.description, &m.purchasePrice,
			&m.volume, &m.actualPrice, &m.vendorName); err != nil {
			return nil, apperrors.NewStorageError("scan product master row", err)
		}
		master[brand] = m
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("load product master", err)
	}
	return master, nil
}
