// Package variant validates and normalizes nested color/size variants and
// aggregates them into product stock.
package variant

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/neargud/catalog/internal/domain"
)

// Result is a validated variant document with the product stock derived from it.
type Result struct {
	Variants      domain.Variants
	StockQuantity int
	Stock         domain.StockStatus
	// LowestPrice is the cheapest size price, or nil when no size is priced.
	LowestPrice *decimal.Decimal
}

// Validate checks a full variant list and aggregates its stock. The list is
// always validated as a whole. explicitQuantity, when set, overrides the
// aggregated total for the product's own quantity.
func Validate(colors []domain.RawColorVariant, explicitQuantity domain.Number) (*Result, error) {
	retained, err := retainColors(colors)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ColorVariant, 0, len(retained))
	hasSizes := false
	for _, raw := range retained {
		cv, err := normalizeColor(raw)
		if err != nil {
			return nil, err
		}
		if len(cv.SizeVariants) > 0 {
			hasSizes = true
		}
		out = append(out, cv)
	}
	if !hasSizes {
		return nil, domain.EmptyVariantSet()
	}

	for _, cv := range out {
		if err := checkUniqueSizes(cv); err != nil {
			return nil, err
		}
	}

	res := &Result{Variants: domain.Variants{ColorVariants: out}}
	total := 0
	for ci := range out {
		cv := &out[ci]
		for si := range cv.SizeVariants {
			sv := &cv.SizeVariants[si]
			if err := checkSize(cv.ColorName, sv); err != nil {
				return nil, err
			}
			sv.StockStatus = domain.DeriveStockStatus(sv.StockQuantity)
			total += sv.StockQuantity
			if sv.Price != nil && (res.LowestPrice == nil || sv.Price.LessThan(*res.LowestPrice)) {
				p := *sv.Price
				res.LowestPrice = &p
			}
		}
	}

	res.StockQuantity = total
	if explicitQuantity.IsSet() {
		q, err := Quantity(explicitQuantity)
		if err != nil {
			return nil, err
		}
		res.StockQuantity = q
	}
	res.Stock = domain.DeriveStockStatus(res.StockQuantity)
	return res, nil
}

// retainColors drops colors without a name. Dropping every entry is only an
// error when at least one dropped entry carried content.
func retainColors(colors []domain.RawColorVariant) ([]domain.RawColorVariant, error) {
	retained := make([]domain.RawColorVariant, 0, len(colors))
	droppedContent := false
	for _, c := range colors {
		if strings.TrimSpace(c.ColorName) == "" {
			if len(c.SizeVariants) > 0 || strings.TrimSpace(c.ColorCode) != "" || len(c.Images) > 0 {
				droppedContent = true
			}
			continue
		}
		retained = append(retained, c)
	}
	if len(retained) == 0 && droppedContent {
		return nil, domain.InvalidVariant("every color variant is missing a color name")
	}
	return retained, nil
}

// normalizeColor trims the color and coerces its sizes, dropping sizes that
// lack a name or a stock quantity.
func normalizeColor(raw domain.RawColorVariant) (domain.ColorVariant, error) {
	cv := domain.ColorVariant{
		ColorName:    strings.TrimSpace(raw.ColorName),
		ColorCode:    strings.TrimSpace(raw.ColorCode),
		SizeVariants: make([]domain.SizeVariant, 0, len(raw.SizeVariants)),
	}
	for _, img := range raw.Images {
		if img = strings.TrimSpace(img); img != "" {
			cv.Images = append(cv.Images, img)
		}
	}

	for _, rs := range raw.SizeVariants {
		if !rs.Size.IsSet() || !rs.StockQuantity.IsSet() {
			continue
		}
		size := rs.Size.String()

		qty, err := rs.StockQuantity.Int()
		if err != nil {
			return cv, malformed("stock_quantity", rs.StockQuantity, err, cv.ColorName, size)
		}
		sv := domain.SizeVariant{Size: size, StockQuantity: qty}
		if sv.Price, err = optionalPrice(rs.Price); err != nil {
			return cv, malformed("price", rs.Price, err, cv.ColorName, size)
		}
		if sv.OriginalPrice, err = optionalPrice(rs.OriginalPrice); err != nil {
			return cv, malformed("original_price", rs.OriginalPrice, err, cv.ColorName, size)
		}
		cv.SizeVariants = append(cv.SizeVariants, sv)
	}
	return cv, nil
}

func checkUniqueSizes(cv domain.ColorVariant) error {
	seen := make(map[string]struct{}, len(cv.SizeVariants))
	for _, sv := range cv.SizeVariants {
		if _, dup := seen[sv.Size]; dup {
			return domain.DuplicateSize(cv.ColorName, sv.Size)
		}
		seen[sv.Size] = struct{}{}
	}
	return nil
}

func checkSize(color string, sv *domain.SizeVariant) error {
	if err := CheckPrices(color, sv.Size, sv.Price, sv.OriginalPrice); err != nil {
		return err
	}
	if sv.StockQuantity < 0 {
		return domain.NegativeStock(color, sv.Size, sv.StockQuantity)
	}
	return nil
}

// CheckPrices applies the price rules shared by products and sizes: no
// negative prices, and an original price never below the price.
func CheckPrices(color, size string, price, originalPrice *decimal.Decimal) error {
	if price != nil && price.IsNegative() {
		return domain.NegativePrice(color, size, "price", price.String())
	}
	if originalPrice != nil && originalPrice.IsNegative() {
		return domain.NegativePrice(color, size, "original_price", originalPrice.String())
	}
	if price != nil && originalPrice != nil && originalPrice.LessThan(*price) {
		return domain.PriceConsistency(color, size, price.String(), originalPrice.String())
	}
	return nil
}

// Quantity coerces a top-level stock quantity, rejecting negatives.
func Quantity(n domain.Number) (int, error) {
	q, err := n.Int()
	if err != nil {
		return 0, malformed("stock_quantity", n, err, "", "")
	}
	if q < 0 {
		return 0, domain.NegativeStock("", "", q)
	}
	return q, nil
}

// Price coerces an optional top-level price field.
func Price(field string, n domain.Number) (*decimal.Decimal, error) {
	p, err := optionalPrice(n)
	if err != nil {
		return nil, malformed(field, n, err, "", "")
	}
	return p, nil
}

func optionalPrice(n domain.Number) (*decimal.Decimal, error) {
	if !n.IsSet() {
		return nil, nil
	}
	d, err := n.Decimal()
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func malformed(field string, n domain.Number, cause error, color, size string) error {
	return domain.ForVariant(domain.MalformedInput(field, n.Raw(), cause.Error()), color, size)
}
