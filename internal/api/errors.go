package api

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/couponables/internal/domain/coupon"
)

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("kind", func(e *jx.Encoder) { e.Str(kind) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

// handleError maps domain errors to HTTP responses. Unexpected errors are
// logged and reported without detail.
func handleError(ctx context.Context, w http.ResponseWriter, err error) {
	if kind := coupon.KindOf(err); kind != coupon.KindUnknown {
		status := http.StatusUnprocessableEntity
		if kind == coupon.KindInvalidCoupon {
			status = http.StatusNotFound
		}
		writeError(w, status, kind.String(), err.Error())
		return
	}

	var badReq *badRequestError
	switch {
	case errors.As(err, &badReq),
		errors.Is(err, coupon.ErrInvalidAttributes),
		errors.Is(err, coupon.ErrRedeemerRequired):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, coupon.ErrDuplicateCode):
		writeError(w, http.StatusConflict, "duplicate_code", err.Error())
	default:
		zctx.From(ctx).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
