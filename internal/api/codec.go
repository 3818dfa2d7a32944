package api

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/couponables/internal/domain/coupon"
	"github.com/xenking/couponables/internal/notify"
)

const maxBodySize = 1 << 20

// badRequestError marks malformed requests.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }

func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(err error, msg string) error {
	return &badRequestError{err: errors.Wrap(err, msg)}
}

// readBody returns a decoder over the request body, or nil for an empty
// body.
func readBody(w http.ResponseWriter, r *http.Request) (*jx.Decoder, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, badRequest(err, "read body")
	}
	if len(data) == 0 {
		return nil, nil
	}
	return jx.DecodeBytes(data), nil
}

type redeemRequest struct {
	Redeemer   *coupon.Ref
	OnBehalfOf *coupon.Ref
}

func (req *redeemRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "redeemer":
			ref, err := decodeRef(d)
			req.Redeemer = ref
			return err
		case "on_behalf_of":
			ref, err := decodeRef(d)
			req.OnBehalfOf = ref
			return err
		default:
			return d.Skip()
		}
	})
}

type calculateRequest struct {
	Base     decimal.Decimal
	Redeemer *coupon.Ref
	set      bool
}

func (req *calculateRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "base":
			v, err := decodeDecimal(d)
			req.Base, req.set = v, err == nil
			return err
		case "redeemer":
			ref, err := decodeRef(d)
			req.Redeemer = ref
			return err
		default:
			return d.Skip()
		}
	})
}

type createRequest struct {
	Code  string
	Attrs coupon.Attributes
}

func (req *createRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key == "code" {
			v, err := d.Str()
			req.Code = v
			return err
		}
		return decodeAttribute(d, key, &req.Attrs)
	})
}

type generateRequest struct {
	Count    int
	Length   int
	Code     string
	Redeemer *coupon.Ref
	Attrs    coupon.Attributes
}

func (req *generateRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "count":
			req.Count, err = d.Int()
		case "length":
			req.Length, err = d.Int()
		case "code":
			req.Code, err = d.Str()
		case "redeemer":
			req.Redeemer, err = decodeRef(d)
		case "attributes":
			err = d.Obj(func(d *jx.Decoder, key string) error {
				return decodeAttribute(d, key, &req.Attrs)
			})
		default:
			err = d.Skip()
		}
		return err
	})
}

func decodeAttribute(d *jx.Decoder, key string, a *coupon.Attributes) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	switch key {
	case "type":
		v, err := d.Str()
		t := coupon.Type(v)
		a.Type = &t
		return err
	case "value":
		v, err := decodeDecimal(d)
		a.Value = &v
		return err
	case "is_enabled":
		v, err := d.Bool()
		a.IsEnabled = &v
		return err
	case "quantity":
		v, err := d.Int()
		a.Quantity = &v
		return err
	case "limit":
		v, err := d.Int()
		a.Limit = &v
		return err
	case "expires_at":
		s, err := d.Str()
		if err != nil {
			return err
		}
		v, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return errors.Wrap(err, "expires_at")
		}
		a.ExpiresAt = &v
		return nil
	case "redeemer_type":
		v, err := d.Str()
		a.RedeemerType = &v
		return err
	case "redeemer_id":
		v, err := d.Str()
		a.RedeemerID = &v
		return err
	case "data":
		v, err := notify.DecodeAny(d)
		if err != nil {
			return err
		}
		m, ok := v.(map[string]any)
		if !ok {
			return errors.New("data must be an object")
		}
		a.Data = m
		return nil
	default:
		return d.Skip()
	}
}

func decodeRef(d *jx.Decoder) (*coupon.Ref, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var ref coupon.Ref
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "type":
			ref.Type, err = d.Str()
		case "id":
			ref.ID, err = decodeID(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if ref.Type == "" || ref.ID == "" {
		return nil, errors.New("redeemer needs type and id")
	}
	return &ref, nil
}

// decodeID accepts string and numeric identifiers.
func decodeID(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Number {
		n, err := d.Num()
		return n.String(), err
	}
	return d.Str()
}

// decodeDecimal accepts JSON numbers and numeric strings.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var s string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		s = n.String()
	case jx.String:
		v, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		s = v
	default:
		return decimal.Zero, errors.New("expected number")
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse decimal %q", s)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, f func(e *jx.Encoder)) {
	var e jx.Encoder
	f(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("type", func(e *jx.Encoder) { e.Str(string(c.Type)) })
		e.Field("value", func(e *jx.Encoder) { e.Str(c.Value.String()) })
		e.Field("is_enabled", func(e *jx.Encoder) { e.Bool(c.Enabled()) })
		e.Field("quantity", func(e *jx.Encoder) { encodeOptInt(e, c.Quantity) })
		e.Field("limit", func(e *jx.Encoder) { encodeOptInt(e, c.Limit) })
		e.Field("expires_at", func(e *jx.Encoder) {
			if c.ExpiresAt == nil {
				e.Null()
				return
			}
			e.Str(c.ExpiresAt.UTC().Format(time.RFC3339))
		})
		e.Field("redeemer_type", func(e *jx.Encoder) { encodeOptStr(e, c.RedeemerType) })
		e.Field("redeemer_id", func(e *jx.Encoder) { encodeOptStr(e, c.RedeemerID) })
		e.Field("data", func(e *jx.Encoder) {
			if c.Data == nil {
				e.Null()
				return
			}
			notify.EncodeAny(e, c.Data)
		})
		e.Field("created_at", func(e *jx.Encoder) { e.Str(c.CreatedAt.UTC().Format(time.RFC3339)) })
	})
}

func encodeRedemption(e *jx.Encoder, rec *coupon.Redemption) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(rec.ID) })
		e.Field("code", func(e *jx.Encoder) { e.Str(rec.Code) })
		e.Field("coupon_id", func(e *jx.Encoder) { e.Int64(rec.CouponID) })
		e.Field("redeemed_at", func(e *jx.Encoder) { e.Str(rec.RedeemedAt.UTC().Format(time.RFC3339)) })
		if rec.OnBehalfOf != nil {
			e.Field("on_behalf_of", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("type", func(e *jx.Encoder) { e.Str(rec.OnBehalfOf.Type) })
					e.Field("id", func(e *jx.Encoder) { e.Str(rec.OnBehalfOf.ID) })
				})
			})
		}
	})
}

func encodeOptInt(e *jx.Encoder, v *int) {
	if v == nil {
		e.Null()
		return
	}
	e.Int(*v)
}

func encodeOptStr(e *jx.Encoder, v string) {
	if v == "" {
		e.Null()
		return
	}
	e.Str(v)
}
