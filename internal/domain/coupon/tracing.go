package coupon

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xenking/couponables/internal/domain/coupon"

// Traced wraps an Engine with a span per state-changing or checking call.
// Cheap predicates pass through untraced.
type Traced struct {
	Engine
	tracer trace.Tracer
}

var _ Engine = (*Traced)(nil)

// NewTraced returns e instrumented with tracers from tp.
func NewTraced(e Engine, tp trace.TracerProvider) *Traced {
	return &Traced{Engine: e, tracer: tp.Tracer(tracerName)}
}

func (t *Traced) start(ctx context.Context, name, code string, r Redeemer) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("coupon.code", code)}
	if r != nil {
		attrs = append(attrs,
			attribute.String("coupon.redeemer.type", r.RedeemerType()),
			attribute.String("coupon.redeemer.id", r.RedeemerID()),
		)
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if k := KindOf(err); k != KindUnknown {
			span.SetAttributes(attribute.String("coupon.error", k.String()))
		}
	}
	span.End()
}

func (t *Traced) Verify(ctx context.Context, code string, r Redeemer) (_ *Coupon, rerr error) {
	ctx, span := t.start(ctx, "coupon.Verify", code, r)
	defer func() { end(span, rerr) }()
	return t.Engine.Verify(ctx, code, r)
}

func (t *Traced) VerifyOr(ctx context.Context, code string, r Redeemer, fallback Fallback) (_ *Coupon, rerr error) {
	ctx, span := t.start(ctx, "coupon.VerifyOr", code, r)
	defer func() { end(span, rerr) }()
	return t.Engine.VerifyOr(ctx, code, r, fallback)
}

func (t *Traced) Apply(ctx context.Context, c *Coupon, r, onBehalfOf Redeemer) (_ *Coupon, rerr error) {
	ctx, span := t.start(ctx, "coupon.Apply", c.Code, r)
	defer func() { end(span, rerr) }()
	return t.Engine.Apply(ctx, c, r, onBehalfOf)
}

func (t *Traced) Redeem(ctx context.Context, code string, r, onBehalfOf Redeemer) (_ *Coupon, rerr error) {
	ctx, span := t.start(ctx, "coupon.Redeem", code, r)
	defer func() { end(span, rerr) }()
	return t.Engine.Redeem(ctx, code, r, onBehalfOf)
}

func (t *Traced) RedeemOr(ctx context.Context, code string, r, onBehalfOf Redeemer, fallback Fallback) (_ *Coupon, rerr error) {
	ctx, span := t.start(ctx, "coupon.RedeemOr", code, r)
	defer func() { end(span, rerr) }()
	return t.Engine.RedeemOr(ctx, code, r, onBehalfOf, fallback)
}

func (t *Traced) Calculate(ctx context.Context, c *Coupon, base decimal.Decimal) (_ decimal.Decimal, rerr error) {
	ctx, span := t.start(ctx, "coupon.Calculate", c.Code, nil)
	span.SetAttributes(attribute.String("coupon.base", base.String()))
	defer func() { end(span, rerr) }()
	return t.Engine.Calculate(ctx, c, base)
}

func (t *Traced) Create(ctx context.Context, c *Coupon) (rerr error) {
	ctx, span := t.start(ctx, "coupon.Create", c.Code, nil)
	defer func() { end(span, rerr) }()
	return t.Engine.Create(ctx, c)
}

func (t *Traced) GenerateBatch(ctx context.Context, count, length int, attrs Attributes) (_ []*Coupon, rerr error) {
	ctx, span := t.tracer.Start(ctx, "coupon.GenerateBatch", trace.WithAttributes(
		attribute.Int("coupon.batch.count", count),
		attribute.Int("coupon.batch.length", length),
	))
	defer func() { end(span, rerr) }()
	return t.Engine.GenerateBatch(ctx, count, length, attrs)
}

func (t *Traced) GenerateFor(ctx context.Context, r Redeemer, code string, attrs Attributes) (_ *Coupon, rerr error) {
	ctx, span := t.start(ctx, "coupon.GenerateFor", code, r)
	defer func() { end(span, rerr) }()
	return t.Engine.GenerateFor(ctx, r, code, attrs)
}
