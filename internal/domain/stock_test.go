package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStockStatus_Thresholds(t *testing.T) {
	tests := []struct {
		qty  int
		want StockStatus
	}{
		{-5, StockOutOfStock},
		{0, StockOutOfStock},
		{1, StockLow},
		{10, StockLow},
		{11, StockIn},
		{5000, StockIn},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DeriveStockStatus(tt.qty), "quantity %d", tt.qty)
	}
}

func TestDeriveStockStatus_Monotonic(t *testing.T) {
	rank := map[StockStatus]int{StockOutOfStock: 0, StockLow: 1, StockIn: 2}
	for q := 100; q > -3; q-- {
		assert.LessOrEqual(t, rank[DeriveStockStatus(q-1)], rank[DeriveStockStatus(q)],
			"status improved when quantity dropped from %d to %d", q, q-1)
	}
}

func TestIsValidStockStatus(t *testing.T) {
	assert.True(t, IsValidStockStatus(StockLow))
	assert.False(t, IsValidStockStatus("plenty"))
}
