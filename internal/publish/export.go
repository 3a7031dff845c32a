package publish

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "vendorperf/internal/errors"
	"vendorperf/pkg/contracts/domain"
)

var exportHeader = []string{
	"VendorNumber", "VendorName", "Brand", "Description", "PurchasePrice",
	"Volume", "ActualPrice", "TotalPurchaseQuantity", "TotalPurchaseDollars",
	"TotalSalesQuantity", "TotalSalesDollars", "TotalSalesPrice", "TotalExciseTax",
	"FreightCost", "GrossProfit", "ProfitMargin", "StockTurnover", "Sales_To_Purchase_Ratio",
}

// ExportCSV writes the summary rows to a CSV file for notebook consumers.
func (p *Publisher) ExportCSV(ctx context.Context, path string, rows []domain.VendorSummary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewStorageError("create export directory", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return apperrors.NewStorageError("create summary export file", err)
	}

	if err := writeSummary(file, rows); err != nil {
		file.Close()
		return err
	}

	// A flushed but unclosed file can still lose data; the close error is
	// part of the export outcome.
	if err := file.Close(); err != nil {
		return apperrors.NewStorageError("close summary export file", err)
	}

	p.logger.InfoContext(ctx, "summary exported",
		slog.String("path", path),
		slog.Int("rows", len(rows)))
	return nil
}

func writeSummary(w io.Writer, rows []domain.VendorSummary) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(exportHeader); err != nil {
		return apperrors.NewStorageError("write export header", err)
	}

	for _, r := range rows {
		record := []string{
			fmt.Sprintf("%d", r.VendorNumber),
			r.VendorName,
			fmt.Sprintf("%d", r.Brand),
			r.Description,
			fmt.Sprintf("%.2f", r.PurchasePrice),
			fmt.Sprintf("%.2f", r.Volume),
			fmt.Sprintf("%.2f", r.ActualPrice),
			fmt.Sprintf("%d", r.TotalPurchaseQuantity),
			fmt.Sprintf("%.2f", r.TotalPurchaseDollars),
			fmt.Sprintf("%d", r.TotalSalesQuantity),
			fmt.Sprintf("%.2f", r.TotalSalesDollars),
			fmt.Sprintf("%.2f", r.TotalSalesPrice),
			fmt.Sprintf("%.2f", r.TotalExciseTax),
			fmt.Sprintf("%.2f", r.FreightCost),
			fmt.Sprintf("%.2f", r.GrossProfit),
			fmt.Sprintf("%.2f", r.ProfitMargin),
			fmt.Sprintf("%.4f", r.StockTurnover),
			fmt.Sprintf("%.4f", r.SalesToPurchaseRatio),
		}
		if err := writer.Write(record); err != nil {
			return apperrors.NewStorageError("write export row", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.NewStorageError("flush summary export", err)
	}
	return nil
}
