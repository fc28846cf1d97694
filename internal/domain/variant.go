package domain

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// SizeVariant is one purchasable size of a color.
type SizeVariant struct {
	Size          string           `json:"size"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty"`
	StockQuantity int              `json:"stock_quantity"`
	StockStatus   StockStatus      `json:"stock_status"`
}

// ColorVariant groups the sizes offered in one color.
type ColorVariant struct {
	ColorName    string        `json:"color_name"`
	ColorCode    string        `json:"color_code,omitempty"`
	Images       []string      `json:"images,omitempty"`
	SizeVariants []SizeVariant `json:"size_variants"`
}

// Variants is the validated variant document stored with a product. It is
// always replaced as a whole.
type Variants struct {
	ColorVariants []ColorVariant `json:"color_variants"`
}

// IsEmpty reports whether the product carries no variants.
func (v Variants) IsEmpty() bool {
	return len(v.ColorVariants) == 0
}

// RawSizeVariant is an untrusted size entry before coercion and validation.
type RawSizeVariant struct {
	Size          Text   `json:"size"`
	Price         Number `json:"price"`
	OriginalPrice Number `json:"original_price"`
	StockQuantity Number `json:"stock_quantity"`
}

// RawColorVariant is an untrusted color entry before validation.
type RawColorVariant struct {
	ColorName    string           `json:"color_name"`
	ColorCode    string           `json:"color_code"`
	Images       []string         `json:"images"`
	SizeVariants []RawSizeVariant `json:"size_variants"`
}

// RawVariants is the variant document as submitted by a client.
type RawVariants struct {
	ColorVariants []RawColorVariant `json:"color_variants"`
}

// VariantsPatch is the variants field of a product update. An absent field
// leaves variants untouched, null removes them and a document replaces them.
type VariantsPatch struct {
	Set   bool
	Value *RawVariants
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *VariantsPatch) UnmarshalJSON(b []byte) error {
	p.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		p.Value = nil
		return nil
	}
	var raw RawVariants
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.Value = &raw
	return nil
}
