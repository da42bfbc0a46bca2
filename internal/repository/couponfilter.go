package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tactiqa/storefront/internal/domain/coupon"
)

// Headroom over the current code count so codes added between refreshes
// keep the false-positive rate in range.
const (
	filterSlack = 1024
	filterFPR   = 0.001
)

var _ coupon.Repository = (*CouponCodeFilter)(nil)

// CouponCodeFilter fronts a coupon repository with a bloom filter of known
// codes so lookups of codes that certainly do not exist never hit the
// database. False positives fall through to the wrapped repository, which
// gives the definitive answer. The filter is rebuilt periodically; a code
// created between refreshes may be rejected until the next rebuild.
type CouponCodeFilter struct {
	next coupon.Repository
	pool *pgxpool.Pool

	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewCouponCodeFilter wraps next with a bloom-filter fast path. Call Refresh
// once before serving traffic and Run to keep the filter current.
func NewCouponCodeFilter(next coupon.Repository, pool *pgxpool.Pool) *CouponCodeFilter {
	return &CouponCodeFilter{next: next, pool: pool}
}

// Refresh rebuilds the filter from the coupons table.
func (f *CouponCodeFilter) Refresh(ctx context.Context) error {
	rows, err := f.pool.Query(ctx, `SELECT UPPER(code) FROM coupons`)
	if err != nil {
		return errors.Wrap(err, "load coupon codes")
	}
	defer rows.Close()

	codes := make([]string, 0, filterSlack)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return errors.Wrap(err, "scan coupon code")
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "iterate coupon codes")
	}

	filter := bloom.NewWithEstimates(uint(len(codes)+filterSlack), filterFPR)
	for _, code := range codes {
		filter.AddString(code)
	}

	f.mu.Lock()
	f.filter = filter
	f.mu.Unlock()
	return nil
}

// Run refreshes the filter at the given interval until the context is
// cancelled. Refresh errors are ignored here: a stale filter still answers
// correctly for every code it already contains.
func (f *CouponCodeFilter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = f.Refresh(ctx)
		}
	}
}

// FindByCode consults the filter first: a definite miss short-circuits to
// coupon.ErrNotFound without touching the database.
func (f *CouponCodeFilter) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	f.mu.RLock()
	filter := f.filter
	f.mu.RUnlock()

	if filter != nil && !filter.TestString(strings.ToUpper(code)) {
		return nil, coupon.ErrNotFound
	}
	return f.next.FindByCode(ctx, code)
}

// HasUsed delegates to the wrapped repository.
func (f *CouponCodeFilter) HasUsed(ctx context.Context, couponID, userID int64) (bool, error) {
	return f.next.HasUsed(ctx, couponID, userID)
}
