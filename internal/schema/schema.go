package schema

import (
	"fmt"

	apperrors "vendorperf/internal/errors"
)

// ColumnType is the semantic type of a source column.
type ColumnType string

const (
	TypeInteger ColumnType = "integer"
	TypeDecimal ColumnType = "decimal"
	TypeText    ColumnType = "text"
	TypeDate    ColumnType = "date"
)

// Column declares one column of a registered table. Synthetic columns are
// generated by the loader and are not part of the source header contract.
type Column struct {
	Name      string
	Type      ColumnType
	Nullable  bool
	Synthetic bool
}

// RowBounds is the expected row-count range for a source. A Max of zero
// means unbounded. Counts outside the bounds are warnings, not failures.
type RowBounds struct {
	Min int64
	Max int64
}

// Table declares the typed shape of one source or derived relation.
type Table struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
	Expected   RowBounds
}

// SourceColumns returns the columns expected in the raw source header, in
// declaration order. Synthetic columns are excluded.
func (t Table) SourceColumns() []Column {
	cols := make([]Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !c.Synthetic {
			cols = append(cols, c)
		}
	}
	return cols
}

// Column returns the named column declaration.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns all column names in declaration order, synthetic
// columns included.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Registered table names. The six sources feed the pipeline; the summary is
// the derived output relation.
const (
	TableBeginInventory = "begin_inventory"
	TableEndInventory   = "end_inventory"
	TablePurchases      = "purchases"
	TablePurchasePrices = "purchase_prices"
	TableVendorInvoice  = "vendor_invoice"
	TableSales          = "sales"
	TableVendorSummary  = "vendor_sales_summary"
)

// Registry is the declarative lookup for every registered shape. It has no
// side effects; both the ingestion engine and the aggregation engine consume
// it.
type Registry struct {
	tables map[string]Table
	order  []string
}

// NewRegistry constructs the registry with all six source shapes and the
// derived summary shape.
func NewRegistry() *Registry {
	r := &Registry{tables: make(map[string]Table)}
	for _, t := range []Table{
		beginInventoryTable(),
		endInventoryTable(),
		purchasesTable(),
		purchasePricesTable(),
		vendorInvoiceTable(),
		salesTable(),
		vendorSummaryTable(),
	} {
		r.tables[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return r
}

// Lookup returns the declaration for a registered shape. Requesting an
// unknown shape is a configuration error.
func (r *Registry) Lookup(name string) (Table, error) {
	t, ok := r.tables[name]
	if !ok {
		return Table{}, apperrors.NewConfigError(
			fmt.Sprintf("unknown table shape %q", name), nil)
	}
	return t, nil
}

// Sources returns the six source shapes in registration order.
func (r *Registry) Sources() []Table {
	sources := make([]Table, 0, len(r.order)-1)
	for _, name := range r.order {
		if name == TableVendorSummary {
			continue
		}
		sources = append(sources, r.tables[name])
	}
	return sources
}

// Summary returns the derived summary shape.
func (r *Registry) Summary() Table {
	return r.tables[TableVendorSummary]
}

func inventoryColumns(dateColumn string) []Column {
	return []Column{
		{Name: "InventoryId", Type: TypeText},
		{Name: "Store", Type: TypeInteger},
		{Name: "City", Type: TypeText},
		{Name: "Brand", Type: TypeInteger},
		{Name: "Description", Type: TypeText},
		{Name: "Size", Type: TypeText},
		{Name: "onHand", Type: TypeInteger},
		{Name: "Price", Type: TypeDecimal},
		{Name: dateColumn, Type: TypeDate},
	}
}

func beginInventoryTable() Table {
	return Table{
		Name:       TableBeginInventory,
		Columns:    inventoryColumns("startDate"),
		PrimaryKey: []string{"Store", "City", "Brand"},
		Expected:   RowBounds{Min: 1},
	}
}

func endInventoryTable() Table {
	return Table{
		Name:       TableEndInventory,
		Columns:    inventoryColumns("endDate"),
		PrimaryKey: []string{"Store", "City", "Brand"},
		Expected:   RowBounds{Min: 1},
	}
}

func purchasesTable() Table {
	return Table{
		Name: TablePurchases,
		Columns: []Column{
			{Name: "InventoryId", Type: TypeText},
			{Name: "Store", Type: TypeInteger},
			{Name: "Brand", Type: TypeInteger},
			{Name: "Description", Type: TypeText},
			{Name: "Size", Type: TypeText},
			{Name: "VendorNumber", Type: TypeInteger},
			{Name: "VendorName", Type: TypeText},
			{Name: "PONumber", Type: TypeInteger},
			{Name: "PODate", Type: TypeDate},
			{Name: "ReceivingDate", Type: TypeDate},
			{Name: "InvoiceDate", Type: TypeDate},
			{Name: "PayDate", Type: TypeDate},
			{Name: "PurchasePrice", Type: TypeDecimal},
			{Name: "Quantity", Type: TypeInteger},
			{Name: "Dollars", Type: TypeDecimal},
			{Name: "Classification", Type: TypeInteger},
		},
		PrimaryKey: []string{"InventoryId", "PONumber"},
		Expected:   RowBounds{Min: 1},
	}
}

func purchasePricesTable() Table {
	return Table{
		Name: TablePurchasePrices,
		Columns: []Column{
			{Name: "Brand", Type: TypeInteger},
			{Name: "Description", Type: TypeText},
			{Name: "Price", Type: TypeDecimal},
			{Name: "Size", Type: TypeText},
			{Name: "Volume", Type: TypeDecimal},
			{Name: "Classification", Type: TypeInteger},
			{Name: "PurchasePrice", Type: TypeDecimal},
			{Name: "VendorNumber", Type: TypeInteger},
			{Name: "VendorName", Type: TypeText},
		},
		PrimaryKey: []string{"Brand"},
		Expected:   RowBounds{Min: 1},
	}
}

func vendorInvoiceTable() Table {
	return Table{
		Name: TableVendorInvoice,
		Columns: []Column{
			{Name: "VendorNumber", Type: TypeInteger},
			{Name: "VendorName", Type: TypeText},
			{Name: "InvoiceDate", Type: TypeDate},
			{Name: "PONumber", Type: TypeInteger},
			{Name: "PODate", Type: TypeDate},
			{Name: "Quantity", Type: TypeInteger},
			{Name: "Dollars", Type: TypeDecimal},
			{Name: "Freight", Type: TypeDecimal},
			// Approval is ~98% absent upstream. Absence is expected, not a
			// data-quality defect.
			{Name: "Approval", Type: TypeText, Nullable: true},
		},
		PrimaryKey: []string{"VendorNumber", "PONumber", "InvoiceDate"},
		Expected:   RowBounds{Min: 1},
	}
}

func salesTable() Table {
	return Table{
		Name: TableSales,
		Columns: []Column{
			{Name: "InventoryId", Type: TypeText},
			{Name: "Store", Type: TypeInteger},
			{Name: "Brand", Type: TypeInteger},
			{Name: "Description", Type: TypeText},
			{Name: "Size", Type: TypeText},
			{Name: "SalesQuantity", Type: TypeInteger},
			{Name: "SalesDollars", Type: TypeDecimal},
			{Name: "SalesPrice", Type: TypeDecimal},
			{Name: "SalesDate", Type: TypeDate},
			{Name: "Volume", Type: TypeDecimal},
			{Name: "Classification", Type: TypeInteger},
			{Name: "ExciseTax", Type: TypeDecimal},
			// VendorNo is the same domain value as VendorNumber elsewhere;
			// the header name difference is part of the source contract.
			{Name: "VendorNo", Type: TypeInteger},
			{Name: "VendorName", Type: TypeText},
			// Seq disambiguates multiple transactions for the same inventory
			// position on the same date. The loader assigns it.
			{Name: "Seq", Type: TypeInteger, Synthetic: true},
		},
		PrimaryKey: []string{"InventoryId", "SalesDate", "Seq"},
		Expected:   RowBounds{Min: 1},
	}
}

func vendorSummaryTable() Table {
	return Table{
		Name: TableVendorSummary,
		Columns: []Column{
			{Name: "VendorNumber", Type: TypeInteger},
			{Name: "VendorName", Type: TypeText},
			{Name: "Brand", Type: TypeInteger},
			{Name: "Description", Type: TypeText},
			{Name: "PurchasePrice", Type: TypeDecimal},
			{Name: "Volume", Type: TypeDecimal},
			{Name: "ActualPrice", Type: TypeDecimal},
			{Name: "TotalPurchaseQuantity", Type: TypeInteger},
			{Name: "TotalPurchaseDollars", Type: TypeDecimal},
			{Name: "TotalSalesQuantity", Type: TypeInteger},
			{Name: "TotalSalesDollars", Type: TypeDecimal},
			{Name: "TotalSalesPrice", Type: TypeDecimal},
			{Name: "TotalExciseTax", Type: TypeDecimal},
			{Name: "FreightCost", Type: TypeDecimal},
			{Name: "GrossProfit", Type: TypeDecimal},
			{Name: "ProfitMargin", Type: TypeDecimal},
			{Name: "StockTurnover", Type: TypeDecimal},
			{Name: "Sales_To_Purchase_Ratio", Type: TypeDecimal},
		},
		PrimaryKey: []string{"VendorNumber", "Brand"},
	}
}
