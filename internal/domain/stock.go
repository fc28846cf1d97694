package domain

// StockStatus is the availability band derived from a quantity.
type StockStatus string

const (
	StockOutOfStock StockStatus = "out_of_stock"
	StockLow        StockStatus = "low_stock"
	StockIn         StockStatus = "in_stock"
)

// LowStockThreshold is the largest quantity still reported as low stock.
const LowStockThreshold = 10

// DeriveStockStatus maps a quantity onto its stock status. It is the only
// producer of stock status values whenever a quantity is known.
func DeriveStockStatus(quantity int) StockStatus {
	switch {
	case quantity <= 0:
		return StockOutOfStock
	case quantity <= LowStockThreshold:
		return StockLow
	default:
		return StockIn
	}
}

// IsValidStockStatus checks whether s is one of the known stock statuses.
func IsValidStockStatus(s StockStatus) bool {
	return s == StockOutOfStock || s == StockLow || s == StockIn
}
