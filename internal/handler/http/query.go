package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/neargud/catalog/internal/domain"
	"github.com/neargud/catalog/pkg/httputil"
)

// listQuery holds the filters shared by the admin and storefront listings.
type listQuery struct {
	BrandID  *string
	Search   *string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	SortBy   string
}

// parseListQuery reads the shared filters. On a bad value it writes a 400
// and returns false.
func parseListQuery(w http.ResponseWriter, q url.Values) (listQuery, bool) {
	var lq listQuery
	lq.BrandID = optionalString(q, "brand_id")
	lq.Search = optionalString(q, "search")

	var ok bool
	if lq.MinPrice, ok = optionalPrice(w, q, "min_price"); !ok {
		return lq, false
	}
	if lq.MaxPrice, ok = optionalPrice(w, q, "max_price"); !ok {
		return lq, false
	}

	lq.SortBy = q.Get("sort_by")
	if !domain.IsValidSortBy(lq.SortBy) {
		writeInvalidParameter(w, "sort_by must be one of: "+strings.Join(domain.ValidSortByValues(), ", "))
		return lq, false
	}
	return lq, true
}

func optionalString(q url.Values, key string) *string {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil
	}
	return &v
}

func optionalPrice(w http.ResponseWriter, q url.Values, key string) (*decimal.Decimal, bool) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		writeInvalidParameter(w, key+" must be a non-negative number")
		return nil, false
	}
	return &d, true
}

func writeInvalidParameter(w http.ResponseWriter, message string) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: message},
	})
}
