package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"

	"github.com/pilyang/jwp-shopping-order/internal/domain/cart"
	"github.com/pilyang/jwp-shopping-order/internal/domain/coupon"
	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
	"github.com/pilyang/jwp-shopping-order/internal/domain/product"
)

const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, code int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

// readJSON decodes the body with decode and validates the result.
func (h *Handler) readJSON(r *http.Request, v any, decode func(d *jx.Decoder) error) error {
	d := jx.Decode(io.LimitReader(r.Body, maxBodySize), 4096)
	if err := decode(d); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}

	err := h.validate.Struct(v)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, len(verrs))
		for i, fe := range verrs {
			msgs[i] = fe.Namespace() + " failed on " + fe.Tag()
		}
		return badRequest(strings.Join(msgs, "; "))
	}
	return err
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid id " + strconv.Quote(raw))
	}
	return id, nil
}

func encodeMoney(e *jx.Encoder, m money.Money) {
	e.Int64(m.Int64())
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { encodeMoney(e, p.Price) })
		e.Field("imageUrl", func(e *jx.Encoder) { e.Str(p.ImageURL) })
	})
}

func encodeCartItem(e *jx.Encoder, it *cart.CartItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(it.ID()) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity()) })
		e.Field("product", func(e *jx.Encoder) { encodeProduct(e, it.Product()) })
	})
}

// encodeCouponFields writes the catalog fields under the given id, which is
// the member coupon id for coupons a member holds.
func encodeCouponFields(e *jx.Encoder, id int64, c coupon.Coupon) {
	e.Field("id", func(e *jx.Encoder) { e.Int64(id) })
	e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
	e.Field("type", func(e *jx.Encoder) { e.Str(string(c.DiscountType)) })
	e.Field("amount", func(e *jx.Encoder) { e.Num(jx.Num(c.Value.String())) })
}

func encodeMemberCoupon(e *jx.Encoder, mc *coupon.MemberCoupon) {
	e.Obj(func(e *jx.Encoder) {
		encodeCouponFields(e, mc.ID(), mc.Coupon())
		if saved, ok := mc.DiscountedPrice(); ok {
			e.Field("discountedPrice", func(e *jx.Encoder) { encodeMoney(e, saved) })
		}
	})
}

func encodeArr[T any](e *jx.Encoder, items []T, encode func(*jx.Encoder, T)) {
	e.Arr(func(e *jx.Encoder) {
		for _, it := range items {
			encode(e, it)
		}
	})
}
