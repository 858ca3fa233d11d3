package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pilyang/jwp-shopping-order/internal/domain/coupon"
	"github.com/pilyang/jwp-shopping-order/internal/domain/discount"
	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
)

const (
	listCouponsSQL = `SELECT id, name, discount_type, discount_value FROM coupon ORDER BY id`

	getCouponByIDSQL = `SELECT id, name, discount_type, discount_value FROM coupon WHERE id = $1`

	memberCouponColumns = `mc.id, mc.member_id, mc.is_used, mc.discounted_price,
		c.id, c.name, c.discount_type, c.discount_value`

	getMemberCouponsSQL = `SELECT ` + memberCouponColumns + `
		FROM member_coupon mc JOIN coupon c ON c.id = mc.coupon_id
		WHERE mc.member_id = $1 AND NOT mc.is_used
		ORDER BY mc.id`

	// Rows are locked in id order so that requests sharing several coupons
	// cannot deadlock.
	lockMemberCouponsSQL = `SELECT ` + memberCouponColumns + `
		FROM member_coupon mc JOIN coupon c ON c.id = mc.coupon_id
		WHERE mc.id = ANY($1)
		ORDER BY mc.id
		FOR UPDATE OF mc`

	updateMemberCouponSQL = `UPDATE member_coupon SET is_used = $2, discounted_price = $3 WHERE id = $1`

	issueMemberCouponSQL = `WITH ins AS (
			INSERT INTO member_coupon (member_id, coupon_id) VALUES ($1, $2)
			ON CONFLICT (member_id, coupon_id) DO NOTHING
			RETURNING id, member_id, is_used, discounted_price, coupon_id
		)
		SELECT ins.id, ins.member_id, ins.is_used, ins.discounted_price,
			c.id, c.name, c.discount_type, c.discount_value
		FROM ins JOIN coupon c ON c.id = ins.coupon_id`

	couponHoldersSQL = `SELECT member_id FROM member_coupon WHERE coupon_id = $1`

	issueMemberCouponsSQL = `INSERT INTO member_coupon (member_id, coupon_id)
		SELECT m, $2 FROM unnest($1::bigint[]) AS m
		ON CONFLICT (member_id, coupon_id) DO NOTHING`

	upsertCouponSQL = `INSERT INTO coupon (id, name, discount_type, discount_value) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name,
			discount_type = EXCLUDED.discount_type, discount_value = EXCLUDED.discount_value`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	q querier
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{q: pool}
}

// List returns the coupon catalog ordered by id.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.q.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// FindByID returns a catalog coupon, or coupon.ErrNotFound.
func (r *CouponRepository) FindByID(ctx context.Context, id int64) (*coupon.Coupon, error) {
	rows, err := r.q.Query(ctx, getCouponByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting coupon %d: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("coupon %d: %w", id, coupon.ErrNotFound)
		}
		return nil, fmt.Errorf("getting coupon %d: %w", id, err)
	}
	return &c, nil
}

// FindByMemberID returns the member's unused coupons.
func (r *CouponRepository) FindByMemberID(ctx context.Context, memberID int64) ([]*coupon.MemberCoupon, error) {
	rows, err := r.q.Query(ctx, getMemberCouponsSQL, memberID)
	if err != nil {
		return nil, fmt.Errorf("listing coupons of member %d: %w", memberID, err)
	}
	return pgx.CollectRows(rows, scanMemberCoupon)
}

// FindAllByIDsForUpdate locks the listed member coupons with SELECT ... FOR
// UPDATE. It must run inside a transaction for the lock to outlive the
// statement.
func (r *CouponRepository) FindAllByIDsForUpdate(ctx context.Context, ids []int64) ([]*coupon.MemberCoupon, error) {
	rows, err := r.q.Query(ctx, lockMemberCouponsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("locking member coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanMemberCoupon)
}

// UpdateStatus stores the used flag and the recorded saving.
func (r *CouponRepository) UpdateStatus(ctx context.Context, mc *coupon.MemberCoupon) error {
	var saved decimal.NullDecimal
	if d, ok := mc.DiscountedPrice(); ok {
		saved = decimal.NewNullDecimal(d.Decimal())
	}

	tag, err := r.q.Exec(ctx, updateMemberCouponSQL, mc.ID(), mc.Used(), saved)
	if err != nil {
		return fmt.Errorf("updating member coupon %d: %w", mc.ID(), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("member coupon %d: %w", mc.ID(), coupon.ErrNotFound)
	}
	return nil
}

// Issue inserts a member coupon, or fails with coupon.ErrAlreadyIssued.
func (r *CouponRepository) Issue(ctx context.Context, memberID, couponID int64) (*coupon.MemberCoupon, error) {
	rows, err := r.q.Query(ctx, issueMemberCouponSQL, memberID, couponID)
	if err != nil {
		return nil, fmt.Errorf("issuing coupon %d: %w", couponID, err)
	}

	mc, err := pgx.CollectExactlyOneRow(rows, scanMemberCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("coupon %d to member %d: %w", couponID, memberID, coupon.ErrAlreadyIssued)
		}
		return nil, fmt.Errorf("issuing coupon %d: %w", couponID, err)
	}
	return mc, nil
}

// Holders returns the ids of every member already holding couponID.
func (r *CouponRepository) Holders(ctx context.Context, couponID int64) ([]int64, error) {
	rows, err := r.q.Query(ctx, couponHoldersSQL, couponID)
	if err != nil {
		return nil, fmt.Errorf("listing holders of coupon %d: %w", couponID, err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// IssueMany gives couponID to every listed member not already holding it
// and returns how many were issued.
func (r *CouponRepository) IssueMany(ctx context.Context, couponID int64, memberIDs []int64) (int64, error) {
	tag, err := r.q.Exec(ctx, issueMemberCouponsSQL, memberIDs, couponID)
	if err != nil {
		return 0, fmt.Errorf("issuing coupon %d: %w", couponID, err)
	}
	return tag.RowsAffected(), nil
}

// CopyIssue gives couponID to members known not to hold it, using COPY
// instead of a conflict-checked insert. If any member already holds the
// coupon nothing is written and the error wraps coupon.ErrAlreadyIssued.
func (r *CouponRepository) CopyIssue(ctx context.Context, couponID int64, memberIDs []int64) (int64, error) {
	n, err := r.q.CopyFrom(ctx,
		pgx.Identifier{"member_coupon"},
		[]string{"member_id", "coupon_id"},
		pgx.CopyFromSlice(len(memberIDs), func(i int) ([]any, error) {
			return []any{memberIDs[i], couponID}, nil
		}),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("copying coupon %d: %w", couponID, coupon.ErrAlreadyIssued)
		}
		return 0, fmt.Errorf("copying coupon %d: %w", couponID, err)
	}
	return n, nil
}

// Upsert stores a catalog coupon under a fixed id.
func (r *CouponRepository) Upsert(ctx context.Context, c coupon.Coupon) error {
	if _, err := r.q.Exec(ctx, upsertCouponSQL, c.ID, c.Name, string(c.DiscountType), c.Value); err != nil {
		return fmt.Errorf("upserting coupon %d: %w", c.ID, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c   coupon.Coupon
		typ string
	)
	err := row.Scan(&c.ID, &c.Name, &typ, &c.Value)
	c.DiscountType = discount.Type(typ)
	return c, err
}

func scanMemberCoupon(row pgx.CollectableRow) (*coupon.MemberCoupon, error) {
	return readMemberCoupon(row.Scan)
}

// readMemberCoupon scans memberCouponColumns, preceded by any lead
// destinations.
func readMemberCoupon(scan func(dest ...any) error, lead ...any) (*coupon.MemberCoupon, error) {
	var (
		id, memberID int64
		used         bool
		saved        decimal.NullDecimal
		c            coupon.Coupon
		typ          string
	)
	dest := append(lead, &id, &memberID, &used, &saved, &c.ID, &c.Name, &typ, &c.Value)
	if err := scan(dest...); err != nil {
		return nil, err
	}
	c.DiscountType = discount.Type(typ)

	var discounted *money.Money
	if saved.Valid {
		m, err := money.FromDecimal(saved.Decimal)
		if err != nil {
			return nil, fmt.Errorf("member coupon %d saving: %w", id, err)
		}
		discounted = &m
	}
	return coupon.Restore(id, memberID, c, used, discounted), nil
}
