package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	apperrors "github.com/neargud/catalog/pkg/errors"
)

// Sentinels for errors.Is checks. Each is wrapped by the *AppError returned
// from the matching constructor below.
var (
	ErrParentNotFound    = errors.New("parent category not found")
	ErrCircularReference = errors.New("circular category reference")
	ErrDepthExceeded     = errors.New("category depth exceeded")
	ErrHasChildren       = errors.New("category has children")
	ErrInvalidVariant    = errors.New("invalid variant")
	ErrEmptyVariantSet   = errors.New("empty variant set")
	ErrDuplicateSize     = errors.New("duplicate size")
	ErrPriceConsistency  = errors.New("original price below price")
	ErrNegativeStock     = errors.New("negative stock quantity")
	ErrNegativePrice     = errors.New("negative price")
	ErrMalformedInput    = errors.New("malformed input")
	ErrSKUTaken          = errors.New("sku already taken")
)

// ParentNotFound reports a parent reference that does not resolve.
func ParentNotFound(parentID string) *apperrors.AppError {
	return &apperrors.AppError{
		Code:    "PARENT_NOT_FOUND",
		Message: fmt.Sprintf("parent category %s not found", parentID),
		Fields:  map[string]string{"parent_id": parentID},
		Status:  http.StatusNotFound,
		Err:     errors.Join(ErrParentNotFound, apperrors.ErrNotFound),
	}
}

// CircularReference reports a reparent that would make a node its own ancestor.
func CircularReference(nodeID, parentID string) *apperrors.AppError {
	return apperrors.Unprocessable("CIRCULAR_REFERENCE",
		fmt.Sprintf("category %s cannot be placed under %s", nodeID, parentID), ErrCircularReference).
		WithField("category_id", nodeID).
		WithField("parent_id", parentID)
}

// DepthExceeded reports a move that would put a category below MaxDepth.
func DepthExceeded(parentID string, resultingDepth int) *apperrors.AppError {
	return apperrors.Unprocessable("DEPTH_EXCEEDED",
		fmt.Sprintf("categories may be nested at most %d levels deep", MaxDepth), ErrDepthExceeded).
		WithField("parent_id", parentID).
		WithField("resulting_depth", strconv.Itoa(resultingDepth)).
		WithField("max_depth", strconv.Itoa(MaxDepth))
}

// HasChildren reports a delete refused because the category has children.
func HasChildren(id string) *apperrors.AppError {
	return apperrors.Conflict("CATEGORY_HAS_CHILDREN",
		fmt.Sprintf("category %s still has subcategories", id), ErrHasChildren).
		WithField("category_id", id)
}

// SKUTaken reports a product insert that lost a race for its SKU.
func SKUTaken(sku string) *apperrors.AppError {
	err := apperrors.AlreadyExists("product", "sku", sku)
	err.Err = errors.Join(ErrSKUTaken, apperrors.ErrAlreadyExists)
	return err
}

// InvalidVariant reports a variant list with no usable color entry.
func InvalidVariant(message string) *apperrors.AppError {
	return apperrors.Unprocessable("INVALID_VARIANT", message, ErrInvalidVariant)
}

// EmptyVariantSet reports a variant list without any sizes.
func EmptyVariantSet() *apperrors.AppError {
	return apperrors.Unprocessable("EMPTY_VARIANT_SET",
		"at least one color variant must have a size", ErrEmptyVariantSet)
}

// DuplicateSize reports a size listed twice under one color.
func DuplicateSize(color, size string) *apperrors.AppError {
	return apperrors.Unprocessable("DUPLICATE_SIZE",
		fmt.Sprintf("size %q appears more than once for color %q", size, color), ErrDuplicateSize).
		WithField("color", color).
		WithField("size", size)
}

// PriceConsistency reports an original price lower than the selling price.
func PriceConsistency(color, size, price, originalPrice string) *apperrors.AppError {
	return withVariant(apperrors.Unprocessable("PRICE_CONSISTENCY",
		fmt.Sprintf("original price %s is lower than price %s", originalPrice, price), ErrPriceConsistency),
		color, size).
		WithField("price", price).
		WithField("original_price", originalPrice)
}

// NegativeStock reports a stock quantity below zero.
func NegativeStock(color, size string, quantity int) *apperrors.AppError {
	return withVariant(apperrors.Unprocessable("NEGATIVE_STOCK",
		fmt.Sprintf("stock quantity %d is negative", quantity), ErrNegativeStock),
		color, size).
		WithField("stock_quantity", strconv.Itoa(quantity))
}

// NegativePrice reports a price field below zero.
func NegativePrice(color, size, field, value string) *apperrors.AppError {
	return withVariant(apperrors.Unprocessable("NEGATIVE_PRICE",
		fmt.Sprintf("%s %s is negative", field, value), ErrNegativePrice),
		color, size).
		WithField("field", field).
		WithField("value", value)
}

// MalformedInput reports a value that could not be coerced to the expected type.
func MalformedInput(field, value, reason string) *apperrors.AppError {
	return apperrors.Malformed("MALFORMED_INPUT",
		fmt.Sprintf("%s %s", field, reason), ErrMalformedInput).
		WithField("field", field).
		WithField("value", value)
}

// withVariant adds the color and size a variant error refers to. Product
// level errors pass empty strings and get no variant fields.
func withVariant(err *apperrors.AppError, color, size string) *apperrors.AppError {
	if color != "" {
		err.WithField("color", color)
	}
	if size != "" {
		err.WithField("size", size)
	}
	return err
}

// ForVariant tags a malformed input error with its color and size.
func ForVariant(err *apperrors.AppError, color, size string) *apperrors.AppError {
	return withVariant(err, color, size)
}
