package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
)

type cartItemRequest struct {
	ProductID int64 `validate:"gt=0"`
}

type cartQuantityRequest struct {
	Quantity *int `validate:"required,gte=0"`
}

func (h *Handler) listCartItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Carts.List(r.Context(), memberFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeArr(e, items, encodeCartItem)
	})
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	err := h.readJSON(r, &req, func(d *jx.Decoder) error {
		return d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
			if string(key) == "productId" {
				req.ProductID, err = d.Int64()
				return err
			}
			return d.Skip()
		})
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	id, err := h.Carts.Add(r.Context(), memberFrom(r.Context()), req.ProductID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/cart-items/"+strconv.FormatInt(id, 10))
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req cartQuantityRequest
	err = h.readJSON(r, &req, func(d *jx.Decoder) error {
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) != "quantity" {
				return d.Skip()
			}
			q, err := d.Int()
			req.Quantity = &q
			return err
		})
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.Carts.UpdateQuantity(r.Context(), memberFrom(r.Context()), id, *req.Quantity); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Carts.Remove(r.Context(), memberFrom(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
