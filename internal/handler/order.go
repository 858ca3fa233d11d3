package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/jx"

	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
	"github.com/pilyang/jwp-shopping-order/internal/domain/order"
)

const idempotencyKeyHeader = "Idempotency-Key"

type orderProductRequest struct {
	ID    int64 `validate:"gt=0"`
	Price int64 `validate:"gte=0"`
}

type orderItemRequest struct {
	ID       int64 `validate:"gt=0"`
	Quantity int   `validate:"gt=0"`
	Product  orderProductRequest
}

type orderRequest struct {
	CartItems []orderItemRequest `validate:"dive"`
	CouponIDs []int64            `validate:"dive,gt=0"`
}

func (it *orderItemRequest) decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "id":
			it.ID, err = d.Int64()
		case "quantity":
			it.Quantity, err = d.Int()
		case "product":
			err = d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
				switch string(key) {
				case "id":
					it.Product.ID, err = d.Int64()
				case "price":
					it.Product.Price, err = d.Int64()
				default:
					err = d.Skip()
				}
				return err
			})
		default:
			err = d.Skip()
		}
		return err
	})
}

func (req *orderRequest) decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "cartItems":
			return d.Arr(func(d *jx.Decoder) error {
				var it orderItemRequest
				if err := it.decode(d); err != nil {
					return err
				}
				req.CartItems = append(req.CartItems, it)
				return nil
			})
		case "couponIds":
			return d.Arr(func(d *jx.Decoder) error {
				id, err := d.Int64()
				req.CouponIDs = append(req.CouponIDs, id)
				return err
			})
		default:
			return d.Skip()
		}
	})
}

func (req *orderRequest) toDomain() (order.PlaceRequest, error) {
	out := order.PlaceRequest{
		CartItems: make([]order.RequestedItem, len(req.CartItems)),
		CouponIDs: req.CouponIDs,
	}
	for i, it := range req.CartItems {
		price, err := money.New(it.Product.Price)
		if err != nil {
			return order.PlaceRequest{}, err
		}
		out.CartItems[i] = order.RequestedItem{
			CartItemID: it.ID,
			Quantity:   it.Quantity,
			Price:      price,
		}
	}
	return out, nil
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := h.readJSON(r, &req, req.decode); err != nil {
		h.fail(w, r, err)
		return
	}
	place, err := req.toDomain()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	key := r.Header.Get(idempotencyKeyHeader)
	if len(key) > 255 {
		h.fail(w, r, badRequest("idempotency key is too long"))
		return
	}

	id, replayed, err := h.Placer.PlaceOnce(r.Context(), memberFrom(r.Context()), key, place)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	code := http.StatusCreated
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		code = http.StatusOK
	}
	w.Header().Set("Location", "/orders/"+strconv.FormatInt(id, 10))
	writeJSON(w, code, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("orderId", func(e *jx.Encoder) { e.Int64(id) })
		})
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.FindAll(r.Context(), memberFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeArr(e, orders, encodeOrder)
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	o, err := h.Orders.Find(r.Context(), memberFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID()) })
		e.Field("items", func(e *jx.Encoder) {
			encodeArr(e, o.Items(), func(e *jx.Encoder, it order.Item) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("productId", func(e *jx.Encoder) { e.Int64(it.ProductID) })
					e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
					e.Field("imageUrl", func(e *jx.Encoder) { e.Str(it.ImageURL) })
					e.Field("price", func(e *jx.Encoder) { encodeMoney(e, it.Price) })
					e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
				})
			})
		})
		e.Field("coupons", func(e *jx.Encoder) { encodeArr(e, o.Coupons(), encodeMemberCoupon) })
		e.Field("originalPrice", func(e *jx.Encoder) { encodeMoney(e, o.OriginalPrice()) })
		e.Field("discountedPrice", func(e *jx.Encoder) { encodeMoney(e, o.DiscountedPrice()) })
		e.Field("deliveryFee", func(e *jx.Encoder) { encodeMoney(e, o.DeliveryFee()) })
		e.Field("totalPrice", func(e *jx.Encoder) { encodeMoney(e, o.TotalPrice()) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt().Format(time.RFC3339)) })
	})
}
