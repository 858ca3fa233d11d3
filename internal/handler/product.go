package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
	"github.com/pilyang/jwp-shopping-order/internal/domain/product"
)

type productRequest struct {
	Name     string `validate:"required,max=255"`
	Price    int64  `validate:"gte=0"`
	ImageURL string `validate:"omitempty,url"`
}

func (p *productRequest) decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "name":
			p.Name, err = d.Str()
		case "price":
			p.Price, err = d.Int64()
		case "imageUrl":
			p.ImageURL, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

func (h *Handler) readProduct(r *http.Request) (product.Product, error) {
	var req productRequest
	if err := h.readJSON(r, &req, req.decode); err != nil {
		return product.Product{}, err
	}
	price, err := money.New(req.Price)
	if err != nil {
		return product.Product{}, err
	}
	return product.Product{Name: req.Name, Price: price, ImageURL: req.ImageURL}, nil
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Products.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeArr(e, products, encodeProduct)
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.Products.FindByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, *p) })
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.readProduct(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.Products.Create(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/products/"+strconv.FormatInt(id, 10))
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.readProduct(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p.ID = id
	if err := h.Products.Update(r.Context(), p); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Products.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
