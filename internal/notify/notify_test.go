package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/couponables/internal/domain/coupon"
)

var testAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testEvent(name coupon.EventName) coupon.Event {
	q := 3
	return coupon.Event{
		Name: name,
		Coupon: coupon.Coupon{
			ID:       7,
			Code:     "SPRING",
			Type:     coupon.TypePercentage,
			Value:    decimal.RequireFromString("12.5"),
			Quantity: &q,
			Data:     map[string]any{"campaign": "spring", "tier": 2, "tags": []any{"a", true}},
		},
		Redeemer:   &coupon.Ref{Type: "user", ID: "1"},
		OnBehalfOf: &coupon.Ref{Type: "team", ID: "9"},
		At:         testAt,
	}
}

func TestEncodeEvent(t *testing.T) {
	raw := EncodeEvent(testEvent(coupon.EventRedeemed))
	require.NoError(t, jx.DecodeBytes(raw).Validate())

	got := map[string]string{}
	err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "event", "at":
			v, err := d.Str()
			got[key] = v
			return err
		case "coupon":
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "code", "value":
					v, err := d.Str()
					got["coupon."+key] = v
					return err
				default:
					return d.Skip()
				}
			})
		case "redeemer", "on_behalf_of":
			return d.Obj(func(d *jx.Decoder, field string) error {
				v, err := d.Str()
				got[key+"."+field] = v
				return err
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)

	assert.Equal(t, "CouponRedeemed", got["event"])
	assert.Equal(t, "2024-03-01T12:00:00Z", got["at"])
	assert.Equal(t, "SPRING", got["coupon.code"])
	assert.Equal(t, "12.5", got["coupon.value"])
	assert.Equal(t, "user", got["redeemer.type"])
	assert.Equal(t, "9", got["on_behalf_of.id"])
}

func TestEncodeDecodeAny(t *testing.T) {
	var w jx.Encoder
	EncodeAny(&w, testEvent(coupon.EventRedeemed).Coupon.Data)

	v, err := DecodeAny(jx.DecodeBytes(w.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"campaign": "spring",
		"tier":     int64(2),
		"tags":     []any{"a", true},
	}, v)

	v, err = DecodeAny(jx.DecodeStr(`[1.5, null]`))
	require.NoError(t, err)
	assert.Equal(t, []any{1.5, nil}, v)
}

func TestLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLog(zap.New(core))

	sink.Notify(context.Background(), testEvent(coupon.EventRedeemed))
	sink.Notify(context.Background(), testEvent(coupon.EventOverLimit))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "CouponIsOverLimit", entries[1].ContextMap()["event"])
	assert.Equal(t, "user:1", entries[1].ContextMap()["redeemer"])
}

type fakePublisher struct {
	mu       sync.Mutex
	channels []string
	messages [][]byte
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channel)
	p.messages = append(p.messages, message.([]byte))
	return redis.NewIntResult(1, p.err)
}

func TestRedis(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewRedis(pub, "", nil)

	sink.Notify(context.Background(), testEvent(coupon.EventVerified))
	require.Len(t, pub.messages, 1)
	assert.Equal(t, DefaultChannel, pub.channels[0])
	assert.Equal(t, EncodeEvent(testEvent(coupon.EventVerified)), pub.messages[0])
}

func TestRedis_PublishErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	pub := &fakePublisher{err: errors.New("connection refused")}
	sink := NewRedis(pub, "coupons", zap.New(core))

	sink.Notify(context.Background(), testEvent(coupon.EventRedeemed))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "coupons", logs.All()[0].ContextMap()["channel"])
}

func TestMeter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	sink, err := NewMeter(mp)
	require.NoError(t, err)

	ctx := context.Background()
	sink.Notify(ctx, testEvent(coupon.EventRedeemed))
	sink.Notify(ctx, testEvent(coupon.EventRedeemed))
	sink.Notify(ctx, testEvent(coupon.EventExpired))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	m := rm.ScopeMetrics[0].Metrics[0]
	assert.Equal(t, "coupon.events", m.Name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value("event")
		counts[v.AsString()] += dp.Value
	}
	assert.Equal(t, int64(2), counts["CouponRedeemed"])
	assert.Equal(t, int64(1), counts["CouponExpired"])
}

type collector struct {
	mu     sync.Mutex
	events []coupon.Event
}

func (c *collector) Notify(_ context.Context, e coupon.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestMulti(t *testing.T) {
	a, b := &collector{}, &collector{}
	Multi{a, b}.Notify(context.Background(), testEvent(coupon.EventVerified))
	assert.Equal(t, 1, a.len())
	assert.Equal(t, 1, b.len())
}

func TestDispatcher_DeliversAndDrains(t *testing.T) {
	sink := &collector{}
	d := NewDispatcher(sink, 2, 100, nil)
	d.Run()

	for range 50 {
		d.Notify(context.Background(), testEvent(coupon.EventVerified))
	}
	d.Close()

	assert.Equal(t, 50, sink.len())
	assert.Zero(t, d.Dropped())

	// Closed dispatchers drop.
	d.Notify(context.Background(), testEvent(coupon.EventVerified))
	assert.Equal(t, int64(1), d.Dropped())
	d.Close()
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	blocking := coupon.NotifierFunc(func(context.Context, coupon.Event) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})

	core, logs := observer.New(zapcore.WarnLevel)
	d := NewDispatcher(blocking, 1, 1, zap.New(core))
	d.Run()

	d.Notify(context.Background(), testEvent(coupon.EventVerified))
	<-started // the worker holds the first event
	d.Notify(context.Background(), testEvent(coupon.EventVerified))

	done := make(chan struct{})
	go func() {
		d.Notify(context.Background(), testEvent(coupon.EventVerified))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}

	assert.Equal(t, int64(1), d.Dropped())
	assert.Equal(t, 1, logs.FilterMessage("Dropped coupon event").Len())

	close(release)
	d.Close()
}

func TestDispatcher_DetachesContext(t *testing.T) {
	got := make(chan error, 1)
	d := NewDispatcher(coupon.NotifierFunc(func(ctx context.Context, _ coupon.Event) {
		got <- ctx.Err()
	}), 1, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	d.Notify(ctx, testEvent(coupon.EventRedeemed))
	cancel()
	d.Run()
	d.Close()

	assert.NoError(t, <-got)
}

func TestDispatcher_SinkPanic(t *testing.T) {
	sink := &collector{}
	calls := 0
	d := NewDispatcher(coupon.NotifierFunc(func(ctx context.Context, e coupon.Event) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		sink.Notify(ctx, e)
	}), 1, 10, nil)
	d.Run()

	d.Notify(context.Background(), testEvent(coupon.EventVerified))
	d.Notify(context.Background(), testEvent(coupon.EventVerified))
	d.Close()

	assert.Equal(t, 1, sink.len(), "the worker survives a panicking sink")
}
