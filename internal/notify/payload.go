// Package notify provides coupon.Notifier sinks: structured logs, Redis
// pub/sub, OpenTelemetry counters, and an async dispatcher that keeps slow
// sinks off the redemption path.
package notify

import (
	"fmt"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/couponables/internal/domain/coupon"
)

// EncodeEvent renders e as the JSON document published to subscribers.
func EncodeEvent(e coupon.Event) []byte {
	var w jx.Encoder
	w.Obj(func(w *jx.Encoder) {
		w.Field("event", func(w *jx.Encoder) { w.Str(string(e.Name)) })
		w.Field("at", func(w *jx.Encoder) { w.Str(e.At.UTC().Format(time.RFC3339Nano)) })
		w.Field("coupon", func(w *jx.Encoder) { encodeCoupon(w, &e.Coupon) })
		if e.Redeemer != nil {
			w.Field("redeemer", func(w *jx.Encoder) { encodeRef(w, *e.Redeemer) })
		}
		if e.OnBehalfOf != nil {
			w.Field("on_behalf_of", func(w *jx.Encoder) { encodeRef(w, *e.OnBehalfOf) })
		}
	})
	return w.Bytes()
}

func encodeRef(w *jx.Encoder, r coupon.Ref) {
	w.Obj(func(w *jx.Encoder) {
		w.Field("type", func(w *jx.Encoder) { w.Str(r.Type) })
		w.Field("id", func(w *jx.Encoder) { w.Str(r.ID) })
	})
}

func encodeCoupon(w *jx.Encoder, c *coupon.Coupon) {
	w.Obj(func(w *jx.Encoder) {
		w.Field("id", func(w *jx.Encoder) { w.Int64(c.ID) })
		w.Field("code", func(w *jx.Encoder) { w.Str(c.Code) })
		w.Field("type", func(w *jx.Encoder) { w.Str(string(c.Type)) })
		w.Field("value", func(w *jx.Encoder) { w.Str(c.Value.String()) })
		w.Field("is_enabled", func(w *jx.Encoder) { w.Bool(c.Enabled()) })
		if c.Quantity != nil {
			w.Field("quantity", func(w *jx.Encoder) { w.Int(*c.Quantity) })
		}
		if c.Limit != nil {
			w.Field("limit", func(w *jx.Encoder) { w.Int(*c.Limit) })
		}
		if c.ExpiresAt != nil {
			w.Field("expires_at", func(w *jx.Encoder) { w.Str(c.ExpiresAt.UTC().Format(time.RFC3339Nano)) })
		}
		if c.RedeemerType != "" {
			w.Field("redeemer_type", func(w *jx.Encoder) { w.Str(c.RedeemerType) })
		}
		if c.RedeemerID != "" {
			w.Field("redeemer_id", func(w *jx.Encoder) { w.Str(c.RedeemerID) })
		}
		if len(c.Data) > 0 {
			w.Field("data", func(w *jx.Encoder) { EncodeAny(w, c.Data) })
		}
	})
}

// EncodeAny writes the JSON-compatible value v. Values of other types are
// written as their fmt representation.
func EncodeAny(w *jx.Encoder, v any) {
	switch v := v.(type) {
	case nil:
		w.Null()
	case string:
		w.Str(v)
	case bool:
		w.Bool(v)
	case int:
		w.Int(v)
	case int64:
		w.Int64(v)
	case float64:
		w.Float64(v)
	case map[string]any:
		w.Obj(func(w *jx.Encoder) {
			for k, item := range v {
				w.Field(k, func(w *jx.Encoder) { EncodeAny(w, item) })
			}
		})
	case []any:
		w.Arr(func(w *jx.Encoder) {
			for _, item := range v {
				EncodeAny(w, item)
			}
		})
	default:
		w.Str(fmt.Sprint(v))
	}
}

// DecodeAny reads the next JSON value as nil, string, bool, int64, float64,
// []any or map[string]any.
func DecodeAny(d *jx.Decoder) (any, error) {
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.String:
		return d.Str()
	case jx.Bool:
		return d.Bool()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil, err
		}
		if n.IsInt() {
			return n.Int64()
		}
		return n.Float64()
	case jx.Array:
		var out []any
		err := d.Arr(func(d *jx.Decoder) error {
			v, err := DecodeAny(d)
			out = append(out, v)
			return err
		})
		return out, err
	case jx.Object:
		out := map[string]any{}
		err := d.Obj(func(d *jx.Decoder, key string) error {
			v, err := DecodeAny(d)
			out[key] = v
			return err
		})
		return out, err
	default:
		return nil, d.Skip()
	}
}
