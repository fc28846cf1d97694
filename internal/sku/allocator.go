// Package sku allocates unique product SKUs of the form PREFIX-VEND-123456.
package sku

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/neargud/catalog/internal/domain"
	"github.com/neargud/catalog/pkg/database"
	"github.com/neargud/catalog/pkg/slug"
)

const (
	prefixLen = 3
	vendorLen = 4
	pad       = 'X'
	// SKUConstraint is the unique constraint on products.sku.
	SKUConstraint = "products_sku_key"
)

var collisions = promauto.NewCounter(prometheus.CounterOpts{
	Name: "catalog_sku_collisions_total",
	Help: "SKU candidates rejected because the SKU was already taken.",
})

// Clock supplies the time used for the SKU time tag.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Store reports whether a SKU is already taken.
type Store interface {
	SKUExists(ctx context.Context, sku string) (bool, error)
}

// InsertFunc persists the product under the given SKU. It returns
// domain.ErrSKUTaken (or the raw unique violation) when another writer took
// the SKU first.
type InsertFunc func(ctx context.Context, sku string) error

// Allocator builds SKU candidates and retries them until one is stored.
type Allocator struct {
	store Store
	clock Clock
}

// NewAllocator creates an Allocator. A nil clock uses SystemClock.
func NewAllocator(store Store, clock Clock) *Allocator {
	if clock == nil {
		clock = SystemClock
	}
	return &Allocator{store: store, clock: clock}
}

// Allocate finds a free SKU for the product and hands it to insert. When the
// base candidate is taken, -1, -2, ... are appended until insert succeeds.
// There is no attempt limit; the loop ends when ctx is done.
func (a *Allocator) Allocate(ctx context.Context, productName, vendorID string, insert InsertFunc) (string, error) {
	base := Base(productName, vendorID, a.clock.Now())

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("allocate sku: %w", err)
		}

		candidate := base
		if attempt > 0 {
			candidate = base + "-" + strconv.Itoa(attempt)
		}

		taken, err := a.store.SKUExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check sku %s: %w", candidate, err)
		}
		if taken {
			collisions.Inc()
			continue
		}

		err = insert(ctx, candidate)
		if err == nil {
			return candidate, nil
		}
		if !isCollision(err) {
			return "", err
		}
		collisions.Inc()
	}
}

func isCollision(err error) bool {
	return errors.Is(err, domain.ErrSKUTaken) || database.IsUniqueViolation(err, SKUConstraint)
}

// Base returns the first SKU candidate for a product created at t.
func Base(productName, vendorID string, t time.Time) string {
	return fmt.Sprintf("%s-%s-%06d",
		Prefix(productName),
		vendorTag(vendorID),
		t.UnixMilli()%1_000_000,
	)
}

// Prefix is the first three characters of the name, upper-cased, with
// anything outside A-Z and 0-9 replaced by X.
func Prefix(name string) string {
	r := []rune(strings.TrimSpace(name))
	if len(r) > prefixLen {
		r = r[:prefixLen]
	}
	return sanitize(slug.Fold(string(r)), prefixLen, false)
}

// vendorTag keeps the last four characters of the vendor id, sanitized like
// the prefix.
func vendorTag(vendorID string) string {
	return sanitize(strings.TrimSpace(vendorID), vendorLen, true)
}

// sanitize upper-cases s to exactly n characters, padding with X. When
// fromEnd is set the last n characters are kept.
func sanitize(s string, n int, fromEnd bool) string {
	r := []rune(strings.ToUpper(s))
	if len(r) > n {
		if fromEnd {
			r = r[len(r)-n:]
		} else {
			r = r[:n]
		}
	}

	var b strings.Builder
	b.Grow(n)
	for _, c := range r {
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		} else {
			b.WriteRune(pad)
		}
	}
	for b.Len() < n {
		b.WriteRune(pad)
	}
	return b.String()
}
