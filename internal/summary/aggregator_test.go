package summary

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorperf/internal/config"
	"vendorperf/internal/schema"
	"vendorperf/internal/store"
	"vendorperf/pkg/contracts/domain"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), config.StoreConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: 5 * time.Second,
	}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// loadTable loads coerced rows through the same staging path the ingestion
// engine uses.
func loadTable(t *testing.T, st *store.Store, table string, rows [][]interface{}) {
	t.Helper()
	ctx := context.Background()
	tbl, err := schema.NewRegistry().Lookup(table)
	require.NoError(t, err)
	staging, err := st.CreateStaging(ctx, tbl)
	require.NoError(t, err)
	require.NoError(t, st.InsertChunk(ctx, staging, tbl, rows))
	require.NoError(t, st.Swap(ctx, tbl))
}

func masterRowFixture(brand int64, price, volume float64) []interface{} {
	return []interface{}{brand, "Widget Vodka", price, "750mL", volume, int64(1), 10.0, int64(500), "ACME SUPPLY"}
}

func purchaseLine(inventoryID string, brand, po, quantity int64, dollars float64) []interface{} {
	return []interface{}{
		inventoryID, int64(1), brand, "Widget Vodka", "750mL",
		int64(500), "ACME SUPPLY", po, "2024-01-02", "2024-01-05",
		"2024-01-06", "2024-02-01", 10.0, quantity, dollars, int64(1),
	}
}

func saleLine(inventoryID string, vendor, brand, quantity int64, dollars float64, seq int64) []interface{} {
	return []interface{}{
		inventoryID, int64(1), brand, "Widget Vodka", "750mL",
		quantity, dollars, 187.5, "2024-01-10", 750.0,
		int64(1), 7.5, vendor, "ACME SUPPLY", seq,
	}
}

func invoiceLine(vendor, po int64, freight float64) []interface{} {
	return []interface{}{
		vendor, "ACME SUPPLY", "2024-01-06", po, "2024-01-02",
		int64(10), 1000.0, freight, nil,
	}
}

// loadScenario loads one vendor/brand pair with purchase, sales, and freight
// activity whose derived metrics are hand-checkable.
func loadScenario(t *testing.T, st *store.Store) {
	loadTable(t, st, schema.TablePurchasePrices, [][]interface{}{
		masterRowFixture(101, 13.99, 750),
	})
	loadTable(t, st, schema.TablePurchases, [][]interface{}{
		purchaseLine("1_CITY_101", 101, 9001, 6, 600),
		purchaseLine("2_CITY_101", 101, 9001, 4, 400),
	})
	loadTable(t, st, schema.TableVendorInvoice, [][]interface{}{
		invoiceLine(500, 9001, 50),
	})
	loadTable(t, st, schema.TableSales, [][]interface{}{
		saleLine("1_CITY_101", 500, 101, 5, 937.5, 1),
		saleLine("2_CITY_101", 500, 101, 3, 562.5, 2),
	})
}

func TestBuild(t *testing.T) {
	ctx := context.Background()

	t.Run("derives one row per vendor brand pair", func(t *testing.T) {
		st := testStore(t)
		loadScenario(t, st)

		rows, stats, err := NewAggregator(st, discardLogger(), nil).Build(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 1)

		row := rows[0]
		assert.Equal(t, int64(500), row.VendorNumber)
		assert.Equal(t, "ACME SUPPLY", row.VendorName)
		assert.Equal(t, int64(101), row.Brand)
		assert.Equal(t, "Widget Vodka", row.Description)
		assert.Equal(t, 10.0, row.PurchasePrice)
		assert.Equal(t, 750.0, row.Volume)
		assert.Equal(t, 13.99, row.ActualPrice)
		assert.Equal(t, int64(10), row.TotalPurchaseQuantity)
		assert.Equal(t, 1000.0, row.TotalPurchaseDollars)
		assert.Equal(t, int64(8), row.TotalSalesQuantity)
		assert.Equal(t, 1500.0, row.TotalSalesDollars)
		assert.Equal(t, 375.0, row.TotalSalesPrice)
		assert.Equal(t, 15.0, row.TotalExciseTax)
		assert.Equal(t, 50.0, row.FreightCost)
		assert.Equal(t, 500.0, row.GrossProfit)
		assert.Equal(t, 33.33, row.ProfitMargin)
		assert.Equal(t, 0.8, row.StockTurnover)
		assert.Equal(t, 1.5, row.SalesToPurchaseRatio)

		assert.Equal(t, int64(1), stats.SummaryRows)
		assert.Equal(t, int64(0), stats.ZeroGuardActivations)
		assert.Equal(t, int64(0), stats.ExcludedMasterRows)
	})

	t.Run("freight is never multiplied by purchase line count", func(t *testing.T) {
		st := testStore(t)
		loadTable(t, st, schema.TablePurchasePrices, [][]interface{}{
			masterRowFixture(101, 13.99, 750),
		})
		// Five purchase lines against a single invoice. A row-level join
		// would report 5x the freight.
		loadTable(t, st, schema.TablePurchases, [][]interface{}{
			purchaseLine("1_CITY_101", 101, 9001, 2, 200),
			purchaseLine("2_CITY_101", 101, 9001, 2, 200),
			purchaseLine("3_CITY_101", 101, 9001, 2, 200),
			purchaseLine("4_CITY_101", 101, 9001, 2, 200),
			purchaseLine("5_CITY_101", 101, 9001, 2, 200),
		})
		loadTable(t, st, schema.TableVendorInvoice, [][]interface{}{
			invoiceLine(500, 9001, 50),
		})
		loadTable(t, st, schema.TableSales, nil)

		rows, _, err := NewAggregator(st, discardLogger(), nil).Build(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 50.0, rows[0].FreightCost)
		assert.Equal(t, int64(10), rows[0].TotalPurchaseQuantity)
		assert.Equal(t, 1000.0, rows[0].TotalPurchaseDollars)
	})

	t.Run("vendor freight repeats on each of the vendor's brand rows", func(t *testing.T) {
		st := testStore(t)
		loadTable(t, st, schema.TablePurchasePrices, [][]interface{}{
			masterRowFixture(101, 13.99, 750),
			masterRowFixture(102, 21.99, 1000),
		})
		loadTable(t, st, schema.TablePurchases, [][]interface{}{
			purchaseLine("1_CITY_101", 101, 9001, 6, 600),
			purchaseLine("1_CITY_102", 102, 9001, 4, 400),
		})
		loadTable(t, st, schema.TableVendorInvoice, [][]interface{}{
			invoiceLine(500, 9001, 30),
			invoiceLine(500, 9002, 20),
		})
		loadTable(t, st, schema.TableSales, nil)

		rows, _, err := NewAggregator(st, discardLogger(), nil).Build(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, 50.0, rows[0].FreightCost)
		assert.Equal(t, 50.0, rows[1].FreightCost)
	})

	t.Run("pair with sales and no purchases is kept with zero purchase totals", func(t *testing.T) {
		st := testStore(t)
		loadTable(t, st, schema.TablePurchasePrices, [][]interface{}{
			masterRowFixture(101, 13.99, 750),
		})
		loadTable(t, st, schema.TablePurchases, nil)
		loadTable(t, st, schema.TableVendorInvoice, nil)
		loadTable(t, st, schema.TableSales, [][]interface{}{
			saleLine("1_CITY_101", 500, 101, 5, 937.5, 1),
		})

		rows, stats, err := NewAggregator(st, discardLogger(), nil).Build(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 1)

		row := rows[0]
		assert.Equal(t, int64(0), row.TotalPurchaseQuantity)
		assert.Equal(t, 0.0, row.TotalPurchaseDollars)
		assert.Equal(t, int64(5), row.TotalSalesQuantity)
		assert.Equal(t, 937.5, row.TotalSalesDollars)
		assert.Equal(t, "Widget Vodka", row.Description)
		assert.Equal(t, 13.99, row.ActualPrice)
		assert.Equal(t, 937.5, row.GrossProfit)
		assert.Equal(t, 100.0, row.ProfitMargin)
		assert.Equal(t, 0.0, row.StockTurnover)
		assert.Equal(t, 0.0, row.SalesToPurchaseRatio)

		assert.Equal(t, int64(1), stats.SalesOnlyPairs)
		assert.Equal(t, int64(2), stats.ZeroGuardActivations)
	})

	t.Run("sales pair with unknown brand is dropped and counted", func(t *testing.T) {
		st := testStore(t)
		loadTable(t, st, schema.TablePurchasePrices, [][]interface{}{
			masterRowFixture(101, 13.99, 750),
		})
		loadTable(t, st, schema.TablePurchases, nil)
		loadTable(t, st, schema.TableVendorInvoice, nil)
		loadTable(t, st, schema.TableSales, [][]interface{}{
			saleLine("1_CITY_999", 500, 999, 5, 937.5, 1),
		})

		rows, stats, err := NewAggregator(st, discardLogger(), nil).Build(ctx)
		require.NoError(t, err)
		assert.Empty(t, rows)
		assert.Equal(t, int64(1), stats.UnresolvedSalesPairs)
		assert.Equal(t, int64(0), stats.SalesOnlyPairs)
	})

	t.Run("rows with invalid master data are excluded", func(t *testing.T) {
		st := testStore(t)
		loadTable(t, st, schema.TablePurchasePrices, [][]interface{}{
			masterRowFixture(101, 13.99, 750),
			masterRowFixture(102, 0, 750),    // non-positive price
			masterRowFixture(103, 21.99, -1), // non-positive volume
		})
		loadTable(t, st, schema.TablePurchases, [][]interface{}{
			purchaseLine("1_CITY_101", 101, 9001, 6, 600),
			purchaseLine("1_CITY_102", 102, 9001, 4, 400),
			purchaseLine("1_CITY_103", 103, 9001, 2, 200),
		})
		loadTable(t, st, schema.TableVendorInvoice, nil)
		loadTable(t, st, schema.TableSales, nil)

		rows, stats, err := NewAggregator(st, discardLogger(), nil).Build(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, int64(101), rows[0].Brand)
		assert.Equal(t, int64(2), stats.ExcludedMasterRows)
	})

	t.Run("rows are ordered by purchase concentration then key", func(t *testing.T) {
		st := testStore(t)
		loadTable(t, st, schema.TablePurchasePrices, [][]interface{}{
			masterRowFixture(101, 13.99, 750),
			masterRowFixture(102, 21.99, 1000),
			masterRowFixture(103, 9.99, 375),
		})
		loadTable(t, st, schema.TablePurchases, [][]interface{}{
			purchaseLine("1_CITY_101", 101, 9001, 2, 200),
			purchaseLine("1_CITY_102", 102, 9001, 9, 900),
			purchaseLine("1_CITY_103", 103, 9001, 2, 200),
		})
		loadTable(t, st, schema.TableVendorInvoice, nil)
		loadTable(t, st, schema.TableSales, nil)

		rows, _, err := NewAggregator(st, discardLogger(), nil).Build(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, int64(102), rows[0].Brand)
		assert.Equal(t, int64(101), rows[1].Brand)
		assert.Equal(t, int64(103), rows[2].Brand)
	})

	t.Run("rebuild over unchanged inputs is identical", func(t *testing.T) {
		st := testStore(t)
		loadScenario(t, st)
		agg := NewAggregator(st, discardLogger(), nil)

		first, firstStats, err := agg.Build(ctx)
		require.NoError(t, err)
		second, secondStats, err := agg.Build(ctx)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, firstStats, secondStats)
	})
}

func TestBuildSumsRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	loadTable(t, st, schema.TablePurchasePrices, [][]interface{}{
		masterRowFixture(101, 13.99, 750),
		masterRowFixture(102, 21.99, 1000),
	})
	loadTable(t, st, schema.TablePurchases, [][]interface{}{
		purchaseLine("1_CITY_101", 101, 9001, 6, 600),
		purchaseLine("2_CITY_101", 101, 9002, 4, 400),
		purchaseLine("1_CITY_102", 102, 9001, 3, 300),
	})
	loadTable(t, st, schema.TableVendorInvoice, nil)
	loadTable(t, st, schema.TableSales, [][]interface{}{
		saleLine("1_CITY_101", 500, 101, 5, 937.5, 1),
		saleLine("1_CITY_102", 500, 102, 2, 375.0, 2),
	})

	rows, _, err := NewAggregator(st, discardLogger(), nil).Build(ctx)
	require.NoError(t, err)

	var totalPurchase, totalSales float64
	for _, row := range rows {
		totalPurchase += row.TotalPurchaseDollars
		totalSales += row.TotalSalesDollars
	}
	assert.Equal(t, 1300.0, totalPurchase)
	assert.Equal(t, 1312.5, totalSales)

	keys := make(map[domain.SummaryKey]bool, len(rows))
	for _, row := range rows {
		assert.False(t, keys[row.Key()], "duplicate summary key")
		keys[row.Key()] = true
	}
}
