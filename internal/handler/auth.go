package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/pilyang/jwp-shopping-order/internal/domain/member"
)

type memberKeyType struct{}

func withMember(ctx context.Context, m member.Member) context.Context {
	return context.WithValue(ctx, memberKeyType{}, m)
}

// memberFrom returns the member set by authenticate. Routes outside the
// authenticated group must not call it.
func memberFrom(ctx context.Context) member.Member {
	m, _ := ctx.Value(memberKeyType{}).(member.Member)
	return m
}

func memberKey(r *http.Request) string {
	m, ok := r.Context().Value(memberKeyType{}).(member.Member)
	if !ok {
		return ""
	}
	return strconv.FormatInt(m.ID, 10)
}

// authenticate requires HTTP Basic credentials of a registered member.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="shop"`)
			writeMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}

		m, err := h.Auth.Authenticate(r.Context(), email, password)
		switch {
		case errors.Is(err, member.ErrInvalidCredentials):
			w.Header().Set("WWW-Authenticate", `Basic realm="shop"`)
			writeMessage(w, http.StatusUnauthorized, "invalid credentials")
			return
		case err != nil:
			h.fail(w, r, err)
			return
		}

		ctx := withMember(r.Context(), *m)
		ctx = zctx.With(ctx, zap.Int64("member_id", m.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
