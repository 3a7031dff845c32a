package store

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
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), config.StoreConfig{
		Path:        filepath.Join(t.TempDir(), "store.db"),
		BusyTimeout: 5 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func invoiceTable(t *testing.T) schema.Table {
	t.Helper()
	tbl, err := schema.NewRegistry().Lookup(schema.TableVendorInvoice)
	require.NoError(t, err)
	return tbl
}

func invoiceRow(vendor, po int64) []interface{} {
	return []interface{}{
		vendor, "ACME SUPPLY", "2024-01-06", po, "2024-01-02",
		int64(10), 1000.50, 50.0, nil,
	}
}

func TestOpenCreatesStoreDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "store.db")
	st, err := Open(context.Background(), config.StoreConfig{
		Path:        path,
		BusyTimeout: time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.DB().Ping())
}

func TestStagingName(t *testing.T) {
	assert.Equal(t, "sales__staging", StagingName("sales"))
}

func TestStagingLifecycle(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	tbl := invoiceTable(t)

	staging, err := st.CreateStaging(ctx, tbl)
	require.NoError(t, err)
	assert.Equal(t, StagingName(tbl.Name), staging)

	exists, err := st.TableExists(ctx, staging)
	require.NoError(t, err)
	assert.True(t, exists)

	// Creating again must start from a clean relation.
	require.NoError(t, st.InsertChunk(ctx, staging, tbl, [][]interface{}{invoiceRow(500, 9001)}))
	staging, err = st.CreateStaging(ctx, tbl)
	require.NoError(t, err)

	count, err := st.RowCount(ctx, staging)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestInsertChunk(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	tbl := invoiceTable(t)

	staging, err := st.CreateStaging(ctx, tbl)
	require.NoError(t, err)

	t.Run("empty chunk is a no-op", func(t *testing.T) {
		require.NoError(t, st.InsertChunk(ctx, staging, tbl, nil))
	})

	t.Run("rows land in declared column order", func(t *testing.T) {
		require.NoError(t, st.InsertChunk(ctx, staging, tbl, [][]interface{}{
			invoiceRow(500, 9001),
			invoiceRow(500, 9002),
		}))

		count, err := st.RowCount(ctx, staging)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		var freight float64
		require.NoError(t, st.DB().QueryRowContext(ctx,
			`SELECT "Freight" FROM "vendor_invoice__staging" WHERE "PONumber" = 9001`).Scan(&freight))
		assert.Equal(t, 50.0, freight)
	})

	t.Run("primary key violation fails the whole chunk", func(t *testing.T) {
		before, err := st.RowCount(ctx, staging)
		require.NoError(t, err)

		err = st.InsertChunk(ctx, staging, tbl, [][]interface{}{
			invoiceRow(600, 9100),
			invoiceRow(500, 9001), // already present
		})
		require.Error(t, err)

		after, err := st.RowCount(ctx, staging)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}

func TestSwap(t *testing.T) {
	ctx := context.Background()
	tbl := invoiceTable(t)

	t.Run("replaces live table with staging", func(t *testing.T) {
		st := openTestStore(t)

		staging, err := st.CreateStaging(ctx, tbl)
		require.NoError(t, err)
		require.NoError(t, st.InsertChunk(ctx, staging, tbl, [][]interface{}{invoiceRow(500, 9001)}))
		require.NoError(t, st.Swap(ctx, tbl))

		count, err := st.RowCount(ctx, tbl.Name)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		exists, err := st.TableExists(ctx, staging)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("replaces existing live contents", func(t *testing.T) {
		st := openTestStore(t)

		staging, err := st.CreateStaging(ctx, tbl)
		require.NoError(t, err)
		require.NoError(t, st.InsertChunk(ctx, staging, tbl, [][]interface{}{
			invoiceRow(500, 9001),
			invoiceRow(500, 9002),
		}))
		require.NoError(t, st.Swap(ctx, tbl))

		staging, err = st.CreateStaging(ctx, tbl)
		require.NoError(t, err)
		require.NoError(t, st.InsertChunk(ctx, staging, tbl, [][]interface{}{invoiceRow(600, 9100)}))
		require.NoError(t, st.Swap(ctx, tbl))

		count, err := st.RowCount(ctx, tbl.Name)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("missing staging leaves live table untouched", func(t *testing.T) {
		st := openTestStore(t)

		staging, err := st.CreateStaging(ctx, tbl)
		require.NoError(t, err)
		require.NoError(t, st.InsertChunk(ctx, staging, tbl, [][]interface{}{invoiceRow(500, 9001)}))
		require.NoError(t, st.Swap(ctx, tbl))

		err = st.Swap(ctx, tbl)
		require.Error(t, err)

		count, err := st.RowCount(ctx, tbl.Name)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestTableExists(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	exists, err := st.TableExists(ctx, "vendor_sales_summary")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = st.CreateStaging(ctx, invoiceTable(t))
	require.NoError(t, err)

	exists, err = st.TableExists(ctx, StagingName("vendor_invoice"))
	require.NoError(t, err)
	assert.True(t, exists)
}
