package ingest

import (
	"context"
	"log/slog"

	apperrors "vendorperf/internal/errors"
	"vendorperf/pkg/contracts/domain"
)

// integrityChecks are the dimension lookups every fact row must satisfy.
// Gaps are data-quality warnings: the rows stay in the load, because
// silently dropping financial facts would corrupt totals.
var integrityChecks = []struct {
	name  string
	query string
}{
	{
		name: "purchases.Brand->purchase_prices",
		query: `SELECT COUNT(*) FROM purchases p
			LEFT JOIN purchase_prices pp ON pp.Brand = p.Brand
			WHERE pp.Brand IS NULL`,
	},
	{
		name: "purchases.VendorNumber->vendor_invoice",
		query: `SELECT COUNT(*) FROM purchases p
			LEFT JOIN (SELECT DISTINCT VendorNumber FROM vendor_invoice) v
				ON v.VendorNumber = p.VendorNumber
			WHERE v.VendorNumber IS NULL`,
	},
	{
		name: "sales.VendorNo->vendor_invoice",
		query: `SELECT COUNT(*) FROM sales s
			LEFT JOIN (SELECT DISTINCT VendorNumber FROM vendor_invoice) v
				ON v.VendorNumber = s.VendorNo
			WHERE v.VendorNumber IS NULL`,
	},
	{
		name: "begin_inventory.Brand->purchase_prices",
		query: `SELECT COUNT(*) FROM begin_inventory b
			LEFT JOIN purchase_prices pp ON pp.Brand = b.Brand
			WHERE pp.Brand IS NULL`,
	},
	{
		name: "end_inventory.Brand->purchase_prices",
		query: `SELECT COUNT(*) FROM end_inventory e
			LEFT JOIN purchase_prices pp ON pp.Brand = e.Brand
			WHERE pp.Brand IS NULL`,
	},
}

// VerifyReferences runs the referential-integrity pass over the loaded
// sources and reports the gap count per check.
func (l *Loader) VerifyReferences(ctx context.Context) ([]domain.IntegrityReport, error) {
	reports := make([]domain.IntegrityReport, 0, len(integrityChecks))

	for _, check := range integrityChecks {
		var gaps int64
		if err := l.store.DB().QueryRowContext(ctx, check.query).Scan(&gaps); err != nil {
			return nil, apperrors.NewStorageError("referential integrity check failed", err).
				WithContext("check", check.name)
		}

		if gaps > 0 {
			l.logger.WarnContext(ctx, "unresolved dimension references",
				slog.String("check", check.name),
				slog.Int64("gaps", gaps))
		}
		if l.metrics != nil {
			l.metrics.IntegrityGaps.WithLabelValues(check.name).Add(float64(gaps))
		}

		reports = append(reports, domain.IntegrityReport{Check: check.name, Gaps: gaps})
	}

	return reports, nil
}
