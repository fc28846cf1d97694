package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/neargud/catalog/pkg/errors"
)

var variantRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_variant_rejections_total",
	Help: "Product writes rejected by variant or price validation, by error code.",
}, []string{"code"})

func recordRejection(err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		variantRejections.WithLabelValues(appErr.Code).Inc()
	}
}
