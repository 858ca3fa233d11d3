package order

import (
	"context"
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/pilyang/jwp-shopping-order/internal/domain/member"
)

var (
	// ErrRequestInFlight is returned while another request with the same
	// idempotency key is still being placed.
	ErrRequestInFlight = errors.New("order request with this idempotency key is in progress")
	// ErrIdempotencyKeyReused is returned when a key that already placed an
	// order comes back with a different request.
	ErrIdempotencyKeyReused = errors.New("idempotency key was used with a different request")
)

// IdempotencyStore remembers which order an idempotency key produced.
// Keys are scoped per member.
type IdempotencyStore interface {
	// TryLock claims scope/key and reports whether the claim succeeded. The
	// claim expires on its own if it is never released.
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

// Placer places orders.
type Placer interface {
	Place(ctx context.Context, m member.Member, req PlaceRequest) (*Order, error)
}

// Idempotent places an order at most once per member and idempotency key.
type Idempotent struct {
	placer Placer
	store  IdempotencyStore
}

// NewIdempotent wraps placer with store.
func NewIdempotent(placer Placer, store IdempotencyStore) *Idempotent {
	return &Idempotent{placer: placer, store: store}
}

// PlaceOnce places the order and returns its id. A repeated key with the
// same request returns the id of the first order with replayed set; with a
// different request it fails with ErrIdempotencyKeyReused. An empty key
// disables the check. The claim on a key is dropped when PlaceOnce returns,
// so a failed placement may be retried with the same key.
func (p *Idempotent) PlaceOnce(ctx context.Context, m member.Member, key string, req PlaceRequest) (id int64, replayed bool, err error) {
	if key == "" {
		o, err := p.placer.Place(ctx, m, req)
		if err != nil {
			return 0, false, err
		}
		return o.ID(), false, nil
	}

	scope := strconv.FormatInt(m.ID, 10)
	fp := req.fingerprint()
	if id, ok, err := p.recall(ctx, scope, key, fp); err != nil || ok {
		return id, ok, err
	}

	locked, err := p.store.TryLock(ctx, scope, key)
	if err != nil {
		return 0, false, errors.Wrap(err, "lock idempotency key")
	}
	if !locked {
		return 0, false, ErrRequestInFlight
	}

	lg := zctx.From(ctx).With(zap.String("idempotency_key", key))
	defer func() {
		if rerr := p.store.Release(context.WithoutCancel(ctx), scope, key); rerr != nil {
			lg.Warn("Release idempotency key", zap.Error(rerr))
		}
	}()

	o, err := p.placer.Place(ctx, m, req)
	if err != nil {
		return 0, false, err
	}

	// The order is committed at this point; a lost mapping only weakens
	// deduplication of later retries.
	if err := p.store.Remember(ctx, scope, key, rememberedValue(o.ID(), fp)); err != nil {
		lg.Warn("Remember idempotency key", zap.Error(err))
	}
	return o.ID(), false, nil
}

func (p *Idempotent) recall(ctx context.Context, scope, key, fp string) (int64, bool, error) {
	v, ok, err := p.store.Recall(ctx, scope, key)
	if err != nil {
		return 0, false, errors.Wrap(err, "recall idempotency key")
	}
	if !ok {
		return 0, false, nil
	}

	rawID, storedFP, _ := strings.Cut(v, ":")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return 0, false, errors.Wrapf(err, "parse remembered order id %q", v)
	}
	if storedFP != fp {
		return 0, false, errors.Wrapf(ErrIdempotencyKeyReused, "key %q placed order %d", key, id)
	}
	return id, true, nil
}

// rememberedValue encodes "<order id>:<request fingerprint>".
func rememberedValue(id int64, fp string) string {
	return strconv.FormatInt(id, 10) + ":" + fp
}

// fingerprint hashes the cart lines and coupon ids in submission order.
func (r PlaceRequest) fingerprint() string {
	buf := binary.AppendUvarint(nil, uint64(len(r.CartItems)))
	for _, it := range r.CartItems {
		buf = binary.AppendVarint(buf, it.CartItemID)
		buf = binary.AppendVarint(buf, int64(it.Quantity))
		buf = binary.AppendVarint(buf, it.Price.Int64())
	}
	buf = binary.AppendUvarint(buf, uint64(len(r.CouponIDs)))
	for _, id := range r.CouponIDs {
		buf = binary.AppendVarint(buf, id)
	}
	return strconv.FormatUint(xxhash.Sum64(buf), 16)
}
