package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passingCheck() CheckFunc {
	return func(context.Context) error { return nil }
}

func failingCheck(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

type statusBody struct {
	Status string
	Checks map[string]string
}

func get(t *testing.T, h http.HandlerFunc) (int, statusBody) {
	t.Helper()

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := statusBody{Checks: map[string]string{}}
	err := jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			v, err := d.Str()
			body.Status = v
			return err
		case "checks":
			return d.Obj(func(d *jx.Decoder, name string) error {
				v, err := d.Str()
				body.Checks[name] = v
				return err
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	return w.Code, body
}

func failN(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.AddLivenessCheck("a", time.Second, passingCheck())
	h.AddLivenessCheck("b", time.Second, passingCheck())

	status, body := get(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body.Status)
	assert.Empty(t, body.Checks)
}

func TestLiveEndpoint_FailingCheck(t *testing.T) {
	h := New()
	h.AddLivenessCheck("postgres", time.Second, failingCheck("connection refused"))

	failN(h.liveness[0], 2)
	status, _ := get(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, status, "below the failure threshold")

	failN(h.liveness[0], 1)
	status, body := get(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["postgres"])
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passingCheck())
	h.AddReadinessCheck("redis", time.Second, failingCheck("i/o timeout"))

	status, body := get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body.Checks, "_readiness")

	h.SetReady(true)
	status, _ = get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, h.IsReady())

	failN(h.readiness[1], 3)
	status, body = get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, map[string]string{"redis": "i/o timeout"}, body.Checks)
	assert.False(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestCustomThresholds(t *testing.T) {
	failing := true
	h := New()
	h.AddReadiness(Check{
		Name: "flaky",
		Func: func(context.Context) error {
			if failing {
				return errors.New("down")
			}
			return nil
		},
		FailureThreshold: 1,
		SuccessThreshold: 2,
	})
	c := h.readiness[0]
	assert.Equal(t, time.Second, c.Timeout)

	failN(c, 1)
	assert.False(t, c.isHealthy())

	failing = false
	failN(c, 1)
	assert.False(t, c.isHealthy(), "one success is not enough")
	failN(c, 1)
	assert.True(t, c.isHealthy())
	assert.NoError(t, c.lastError())
}

func TestMount(t *testing.T) {
	h := New()
	h.SetReady(true)
	r := chi.NewRouter()
	h.Mount(r)

	for _, path := range []string{"/livez", "/readyz"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddLivenessCheck("live", time.Second, failingCheck("err"))
	h.AddReadinessCheck("ready", time.Second, passingCheck())
	h.SetReady(true)

	h.Start(context.Background(), 5*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				get(t, h.LiveEndpoint)
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return !h.liveness[0].isHealthy()
	}, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type redisPinger struct{ err error }

func (p redisPinger) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if p.err != nil {
		cmd.SetErr(p.err)
	} else {
		cmd.SetVal("PONG")
	}
	return cmd
}

func TestPingChecks(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, PingCheck(pinger{})(ctx))
	assert.ErrorContains(t, PingCheck(pinger{err: errors.New("refused")})(ctx), "refused")

	assert.NoError(t, RedisCheck(redisPinger{})(ctx))
	assert.ErrorContains(t, RedisCheck(redisPinger{err: redis.ErrClosed})(ctx), "redis ping")
}

func TestDropCheck(t *testing.T) {
	var dropped int64
	check := DropCheck(func() int64 { return dropped }, 5)
	ctx := context.Background()

	assert.NoError(t, check(ctx))
	dropped = 5
	assert.NoError(t, check(ctx))
	dropped = 11
	assert.ErrorContains(t, check(ctx), "6 events dropped")
	assert.NoError(t, check(ctx), "only growth since the last run counts")
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.ErrorContains(t, GoroutineCountCheck(0)(context.Background()), "exceeds threshold")
}
