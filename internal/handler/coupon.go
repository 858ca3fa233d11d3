package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/pilyang/jwp-shopping-order/internal/domain/coupon"
)

type couponIssueRequest struct {
	CouponID int64 `validate:"gt=0"`
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.Coupons.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("coupons", func(e *jx.Encoder) {
				encodeArr(e, coupons, func(e *jx.Encoder, c coupon.Coupon) {
					e.Obj(func(e *jx.Encoder) { encodeCouponFields(e, c.ID, c) })
				})
			})
		})
	})
}

func (h *Handler) listMemberCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.Coupons.MemberCoupons(r.Context(), memberFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("coupons", func(e *jx.Encoder) {
				encodeArr(e, coupons, encodeMemberCoupon)
			})
		})
	})
}

func (h *Handler) issueCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponIssueRequest
	err := h.readJSON(r, &req, func(d *jx.Decoder) error {
		return d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
			if string(key) == "couponId" {
				req.CouponID, err = d.Int64()
				return err
			}
			return d.Skip()
		})
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	mc, err := h.Coupons.Issue(r.Context(), memberFrom(r.Context()), req.CouponID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeMemberCoupon(e, mc) })
}
