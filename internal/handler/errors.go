package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/pilyang/jwp-shopping-order/internal/domain/cart"
	"github.com/pilyang/jwp-shopping-order/internal/domain/coupon"
	"github.com/pilyang/jwp-shopping-order/internal/domain/discount"
	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
	"github.com/pilyang/jwp-shopping-order/internal/domain/order"
	"github.com/pilyang/jwp-shopping-order/internal/domain/product"
)

// badRequestError marks malformed input detected by the handler itself.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error { return &badRequestError{msg: msg} }

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		badReq       *badRequestError
		priceChanged *order.ProductPriceUpdatedError
		qtyChanged   *order.QuantityNotMatchedError
		cartOwner    *cart.IllegalMemberError
		couponOwner  *coupon.IllegalMemberError
		orderOwner   *order.IllegalMemberError
	)
	switch {
	case errors.As(err, &cartOwner), errors.As(err, &couponOwner), errors.As(err, &orderOwner):
		return http.StatusForbidden
	case errors.Is(err, cart.ErrNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrRequestInFlight):
		return http.StatusConflict
	case errors.Is(err, order.ErrIdempotencyKeyReused):
		return http.StatusUnprocessableEntity
	case errors.As(err, &badReq),
		errors.As(err, &priceChanged),
		errors.As(err, &qtyChanged),
		errors.Is(err, order.ErrNoCartItem),
		errors.Is(err, order.ErrDuplicateCartItem),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, discount.ErrUnknownType),
		errors.Is(err, discount.ErrInvalidValue),
		errors.Is(err, money.ErrNegativeAmount),
		errors.Is(err, coupon.ErrAlreadyUsed),
		errors.Is(err, coupon.ErrDiscountExceedsPrice),
		errors.Is(err, coupon.ErrAlreadyIssued):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error. Server errors are logged and their
// details hidden from the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeMessage(w, code, http.StatusText(code))
		return
	}
	writeMessage(w, code, err.Error())
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(code) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}
