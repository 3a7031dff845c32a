// Package publish persists the aggregation output as the
// vendor_sales_summary relation and exposes it read-only to downstream
// consumers. Publication is staged: a partially-written summary is never
// observable, and a failed publish leaves the previous summary intact.
package publish

import (
	"context"
	"log/slog"

	apperrors "vendorperf/internal/errors"
	"vendorperf/internal/schema"
	"vendorperf/internal/store"
	"vendorperf/pkg/contracts/domain"
)

// insertBatchSize bounds the rows per insert transaction during staging.
const insertBatchSize = 5000

// Publisher owns the derived summary relation.
type Publisher struct {
	store    *store.Store
	registry *schema.Registry
	logger   *slog.Logger
}

// NewPublisher creates a publisher over the store.
func NewPublisher(st *store.Store, registry *schema.Registry, logger *slog.Logger) *Publisher {
	return &Publisher{
		store:    st,
		registry: registry,
		logger:   logger.With(slog.String("component", "publisher")),
	}
}

// Publish replaces the summary relation with the given rows. Rows are
// written to a staging relation first and swapped in atomically.
func (p *Publisher) Publish(ctx context.Context, rows []domain.VendorSummary) error {
	tbl := p.registry.Summary()

	staging, err := p.store.CreateStaging(ctx, tbl)
	if err != nil {
		return apperrors.NewPublishError("stage summary relation", err)
	}

	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := make([][]interface{}, 0, end-start)
		for _, row := range rows[start:end] {
			batch = append(batch, rowValues(row))
		}
		if err := p.store.InsertChunk(ctx, staging, tbl, batch); err != nil {
			p.dropStaging(ctx, tbl.Name)
			return apperrors.NewPublishError("write summary rows", err)
		}
	}

	if err := p.store.Swap(ctx, tbl); err != nil {
		p.dropStaging(ctx, tbl.Name)
		return apperrors.NewPublishError("swap summary relation", err)
	}

	p.logger.InfoContext(ctx, "vendor summary published", slog.Int("rows", len(rows)))
	return nil
}

func (p *Publisher) dropStaging(ctx context.Context, table string) {
	if err := p.store.DropStaging(ctx, table); err != nil {
		p.logger.WarnContext(ctx, "failed to drop summary staging",
			slog.String("error", err.Error()))
	}
}

// Summaries returns every published summary row in publish order.
func (p *Publisher) Summaries(ctx context.Context) ([]domain.VendorSummary, error) {
	return p.query(ctx, "")
}

// SummariesByVendor returns the published rows for one vendor.
func (p *Publisher) SummariesByVendor(ctx context.Context, vendorNumber int64) ([]domain.VendorSummary, error) {
	rows, err := p.query(ctx, "WHERE VendorNumber = ?", vendorNumber)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NewNotFoundError("vendor").
			WithContext("vendor_number", vendorNumber)
	}
	return rows, nil
}

func (p *Publisher) query(ctx context.Context, where string, args ...interface{}) ([]domain.VendorSummary, error) {
	exists, err := p.store.TableExists(ctx, schema.TableVendorSummary)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.NewNotFoundError("vendor summary")
	}

	query := `SELECT VendorNumber, VendorName, Brand, Description, PurchasePrice,
		Volume, ActualPrice, TotalPurchaseQuantity, TotalPurchaseDollars,
		TotalSalesQuantity, TotalSalesDollars, TotalSalesPrice, TotalExciseTax,
		FreightCost, GrossProfit, ProfitMargin, StockTurnover, Sales_To_Purchase_Ratio
		FROM vendor_sales_summary `
	query += where
	query += ` ORDER BY TotalPurchaseDollars DESC, VendorNumber, Brand`

	dbRows, err := p.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("query vendor summary", err)
	}
	defer dbRows.Close()

	var rows []domain.VendorSummary
	for dbRows.Next() {
		var r domain.VendorSummary
		if err := dbRows.Scan(&r.VendorNumber, &r.VendorName, &r.Brand, &r.Description,
			&r.PurchasePrice, &r.Volume, &r.ActualPrice, &r.TotalPurchaseQuantity,
			&r.TotalPurchaseDollars, &r.TotalSalesQuantity, &r.TotalSalesDollars,
			&r.TotalSalesPrice, &r.TotalExciseTax, &r.FreightCost, &r.GrossProfit,
			&r.ProfitMargin, &r.StockTurnover, &r.SalesToPurchaseRatio); err != nil {
			return nil, apperrors.NewStorageError("scan vendor summary row", err)
		}
		rows = append(rows, r)
	}
	if err := dbRows.Err(); err != nil {
		return nil, apperrors.NewStorageError("query vendor summary", err)
	}
	return rows, nil
}

func rowValues(r domain.VendorSummary) []interface{} {
	return []interface{}{
		r.VendorNumber, r.VendorName, r.Brand, r.Description, r.PurchasePrice,
		r.Volume, r.ActualPrice, r.TotalPurchaseQuantity, r.TotalPurchaseDollars,
		r.TotalSalesQuantity, r.TotalSalesDollars, r.TotalSalesPrice, r.TotalExciseTax,
		r.FreightCost, r.GrossProfit, r.ProfitMargin, r.StockTurnover, r.SalesToPurchaseRatio,
	}
}
