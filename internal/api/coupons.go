package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/couponables/internal/domain/coupon"
)

type decodable interface {
	Decode(d *jx.Decoder) error
}

// decodeBody decodes the request body into v. An empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v decodable) error {
	d, err := readBody(w, r)
	if err != nil || d == nil {
		return err
	}
	if err := v.Decode(d); err != nil {
		return badRequest(err, "decode body")
	}
	return nil
}

// asRedeemer keeps a nil *Ref from becoming a non-nil interface.
func asRedeemer(ref *coupon.Ref) coupon.Redeemer {
	if ref == nil {
		return nil
	}
	return *ref
}

func writeCoupon(w http.ResponseWriter, status int, c *coupon.Coupon) {
	writeJSON(w, status, func(e *jx.Encoder) { encodeCoupon(e, c) })
}

// GetCoupon runs the redeemer-independent checks on a code.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.Verify(r.Context(), chi.URLParam(r, "code"), nil)
	if err != nil {
		handleError(r.Context(), w, err)
		return
	}
	writeCoupon(w, http.StatusOK, c)
}

// VerifyCoupon runs every check for the optional redeemer in the body.
func (h *Handler) VerifyCoupon(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeBody(w, r, &req); err != nil {
		handleError(r.Context(), w, err)
		return
	}
	c, err := h.coupons.Verify(r.Context(), chi.URLParam(r, "code"), asRedeemer(req.Redeemer))
	if err != nil {
		handleError(r.Context(), w, err)
		return
	}
	writeCoupon(w, http.StatusOK, c)
}

// RedeemCoupon verifies and redeems a code for the redeemer in the body.
func (h *Handler) RedeemCoupon(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeBody(w, r, &req); err != nil {
		handleError(r.Context(), w, err)
		return
	}
	if req.Redeemer == nil {
		handleError(r.Context(), w, coupon.ErrRedeemerRequired)
		return
	}
	c, err := h.coupons.Redeem(r.Context(),
		chi.URLParam(r, "code"),
		asRedeemer(req.Redeemer),
		asRedeemer(req.OnBehalfOf),
	)
	if err != nil {
		handleError(r.Context(), w, err)
		return
	}
	writeCoupon(w, http.StatusOK, c)
}

// CalculateDiscount verifies a code and applies it to the base amount.
func (h *Handler) CalculateDiscount(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := decodeBody(w, r, &req); err != nil {
		handleError(r.Context(), w, err)
		return
	}
	if !req.set {
		handleError(r.Context(), w, badRequest(errors.New("base is required"), "decode body"))
		return
	}
	if req.Base.IsNegative() {
		handleError(r.Context(), w, badRequest(errors.New("base must not be negative"), "decode body"))
		return
	}

	c, err := h.coupons.Verify(r.Context(), chi.URLParam(r, "code"), asRedeemer(req.Redeemer))
	if err != nil {
		handleError(r.Context(), w, err)
		return
	}
	amount, err := h.coupons.Calculate(r.Context(), c, req.Base)
	if err != nil {
		handleError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
			e.Field("type", func(e *jx.Encoder) { e.Str(string(c.Type)) })
			e.Field("base", func(e *jx.Encoder) { e.Str(req.Base.String()) })
			e.Field("amount", func(e *jx.Encoder) { e.Str(amount.String()) })
			e.Field("discount", func(e *jx.Encoder) { e.Str(req.Base.Sub(amount).String()) })
		})
	})
}

// CreateCoupon stores a coupon with an explicit code.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(w, r, &req); err != nil {
		handleError(r.Context(), w, err)
		return
	}
	c := &coupon.Coupon{Code: req.Code, Type: coupon.TypeSubtraction}
	req.Attrs.Apply(c)

	if err := h.coupons.Create(r.Context(), c); err != nil {
		handleError(r.Context(), w, err)
		return
	}
	writeCoupon(w, http.StatusCreated, c)
}

// GenerateCoupons creates a batch of random codes, or a single assigned
// coupon when the body names a redeemer.
func (h *Handler) GenerateCoupons(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeBody(w, r, &req); err != nil {
		handleError(r.Context(), w, err)
		return
	}

	var (
		created []*coupon.Coupon
		err     error
	)
	if req.Redeemer != nil {
		var c *coupon.Coupon
		c, err = h.coupons.GenerateFor(r.Context(), asRedeemer(req.Redeemer), req.Code, req.Attrs)
		if c != nil {
			created = append(created, c)
		}
	} else {
		count := req.Count
		if count == 0 {
			count = coupon.DefaultBatchSize
		}
		length := req.Length
		if length == 0 {
			length = h.codeLength
		}
		created, err = h.coupons.GenerateBatch(r.Context(), count, length, req.Attrs)
	}
	if err != nil && len(created) == 0 {
		handleError(r.Context(), w, err)
		return
	}

	status := http.StatusCreated
	if err != nil {
		// Partial batch.
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("coupons", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, c := range created {
						encodeCoupon(e, c)
					}
				})
			})
			if err != nil {
				e.Field("error", func(e *jx.Encoder) { e.Str(err.Error()) })
			}
		})
	})
}

// ListRedemptions returns a redeemer's history, newest first.
func (h *Handler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	ref := coupon.Ref{Type: chi.URLParam(r, "type"), ID: chi.URLParam(r, "id")}
	list, err := h.coupons.History(r.Context(), ref)
	if err != nil {
		handleError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("redeemer", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("type", func(e *jx.Encoder) { e.Str(ref.Type) })
					e.Field("id", func(e *jx.Encoder) { e.Str(ref.ID) })
				})
			})
			e.Field("redemptions", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for i := range list {
						encodeRedemption(e, &list[i])
					}
				})
			})
		})
	})
}
