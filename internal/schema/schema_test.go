package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "vendorperf/internal/errors"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name    string
		table   string
		wantErr bool
	}{
		{name: "purchases", table: TablePurchases},
		{name: "sales", table: TableSales},
		{name: "product master", table: TablePurchasePrices},
		{name: "vendor invoice", table: TableVendorInvoice},
		{name: "begin inventory", table: TableBeginInventory},
		{name: "end inventory", table: TableEndInventory},
		{name: "derived summary", table: TableVendorSummary},
		{name: "unknown shape", table: "vendor_returns", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := r.Lookup(tt.table)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig),
					"unknown shapes must fail as configuration errors")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.table, tbl.Name)
			assert.NotEmpty(t, tbl.Columns)
		})
	}
}

func TestRegistrySources(t *testing.T) {
	r := NewRegistry()
	sources := r.Sources()

	require.Len(t, sources, 6)
	for _, src := range sources {
		assert.NotEqual(t, TableVendorSummary, src.Name,
			"the derived summary is not a source")
	}
}

func TestSalesShape(t *testing.T) {
	r := NewRegistry()
	sales, err := r.Lookup(TableSales)
	require.NoError(t, err)

	// The vendor reference arrives as VendorNo on this source only.
	_, ok := sales.Column("VendorNo")
	assert.True(t, ok)
	_, ok = sales.Column("VendorNumber")
	assert.False(t, ok)

	// Seq is loader-assigned and must not be expected in raw headers.
	seq, ok := sales.Column("Seq")
	require.True(t, ok)
	assert.True(t, seq.Synthetic)
	for _, col := range sales.SourceColumns() {
		assert.NotEqual(t, "Seq", col.Name)
	}

	assert.Equal(t, []string{"InventoryId", "SalesDate", "Seq"}, sales.PrimaryKey)
}

func TestApprovalIsTheOnlyNullableColumn(t *testing.T) {
	r := NewRegistry()

	for _, src := range r.Sources() {
		for _, col := range src.Columns {
			if src.Name == TableVendorInvoice && col.Name == "Approval" {
				assert.True(t, col.Nullable)
				continue
			}
			assert.False(t, col.Nullable,
				"%s.%s should not be nullable", src.Name, col.Name)
		}
	}
}

func TestSummaryShape(t *testing.T) {
	r := NewRegistry()
	tbl := r.Summary()

	want := []string{
		"VendorNumber", "VendorName", "Brand", "Description", "PurchasePrice",
		"Volume", "ActualPrice", "TotalPurchaseQuantity", "TotalPurchaseDollars",
		"TotalSalesQuantity", "TotalSalesDollars", "TotalSalesPrice", "TotalExciseTax",
		"FreightCost", "GrossProfit", "ProfitMargin", "StockTurnover", "Sales_To_Purchase_Ratio",
	}
	assert.Equal(t, want, tbl.ColumnNames())
	assert.Equal(t, []string{"VendorNumber", "Brand"}, tbl.PrimaryKey)
}
