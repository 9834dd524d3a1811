// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, primary Backend[fakeAPI], handlers []ErrorHandler[fakeAPI], opts ...Option) *Dispatcher[fakeAPI] {
	t.Helper()
	d, err := New(primary, handlers, opts...)
	require.NoError(t, err)
	return d
}

func okBlock(ctx context.Context, api fakeAPI) (any, error) { return api.baseURL, nil }

func TestNewRequiresPrimary(t *testing.T) {
	_, err := New[fakeAPI](nil, nil)
	assert.ErrorIs(t, err, ErrNoPrimaryBackend)
}

func TestInvokeSuccess(t *testing.T) {
	primary := newFakeBackend("https://api.example/")
	d := newTestDispatcher(t, primary, nil)

	res := Invoke(context.Background(), d, false, func(ctx context.Context, api fakeAPI) (string, error) {
		return "hello " + api.baseURL, nil
	})
	require.True(t, res.IsSuccess())
	assert.Equal(t, "hello https://api.example/", res.Value)
	assert.EqualValues(t, 1, primary.calls.Load())
}

func TestInvokeRetriesWithBackoff(t *testing.T) {
	primary := newFakeBackend("https://api.example/",
		Failure[any](NewConnectionError(false, nil)),
		Failure[any](NewConnectionError(false, nil)),
		Failure[any](NewConnectionError(false, nil)),
	)
	sleeper := &recordingSleep{}
	d := newTestDispatcher(t, primary, nil,
		WithSleep(sleeper.sleep),
		WithRand(func() float64 { return 0 }),
	)

	res := d.Invoke(context.Background(), false, okBlock)
	assert.ErrorIs(t, res.Err, ErrConnection)
	assert.EqualValues(t, 3, primary.calls.Load())
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, sleeper.recorded())
}

func TestInvokeRecoversAfterRetry(t *testing.T) {
	primary := newFakeBackend("https://api.example/",
		Failure[any](NewTimeout(false, nil)),
		Success[any]("ok"),
	)
	sleeper := &recordingSleep{}
	d := newTestDispatcher(t, primary, nil, WithSleep(sleeper.sleep))

	res := Cast[string](d.Invoke(context.Background(), false, okBlock))
	require.True(t, res.IsSuccess())
	assert.Equal(t, "ok", res.Value)
	assert.Len(t, sleeper.recorded(), 1)
}

func TestInvokeForceNoRetry(t *testing.T) {
	primary := newFakeBackend("https://api.example/", Failure[any](NewConnectionError(false, nil)))
	sleeper := &recordingSleep{}
	d := newTestDispatcher(t, primary, nil, WithSleep(sleeper.sleep))

	res := d.Invoke(context.Background(), true, okBlock)
	assert.ErrorIs(t, res.Err, ErrConnection)
	assert.EqualValues(t, 1, primary.calls.Load())
	assert.Empty(t, sleeper.recorded())
}

func TestInvokeRespectsRetryCount(t *testing.T) {
	primary := newFakeBackend("https://api.example/", Failure[any](NewConnectionError(false, nil)))
	client := DefaultClient()
	client.BackoffRetryCount = 0
	d := newTestDispatcher(t, primary, nil, WithClient(client), WithSleep((&recordingSleep{}).sleep))

	d.Invoke(context.Background(), false, okBlock)
	assert.EqualValues(t, 1, primary.calls.Load())
}

func TestInvoke408RetriedOnce(t *testing.T) {
	primary := newFakeBackend("https://api.example/", Failure[any](NewHTTPError(StatusRequestTimeout, "timeout")))
	d := newTestDispatcher(t, primary, nil, WithSleep((&recordingSleep{}).sleep))

	res := d.Invoke(context.Background(), false, okBlock)
	assert.ErrorIs(t, res.Err, ErrHTTP)
	assert.EqualValues(t, 2, primary.calls.Load())
}

func TestInvokeContextCancelledDuringBackoff(t *testing.T) {
	connErr := NewConnectionError(false, nil)
	primary := newFakeBackend("https://api.example/", Failure[any](connErr))
	d := newTestDispatcher(t, primary, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := d.Invoke(ctx, false, okBlock)
	assert.Same(t, connErr, res.Err)
	assert.EqualValues(t, 1, primary.calls.Load())
}

func TestInvokeTooManyRequestsGate(t *testing.T) {
	clock := &manualClock{}
	tooMany := NewTooManyRequests(5)
	primary := newFakeBackend("https://api.example/", Failure[any](tooMany), Success[any]("ok"))
	d := newTestDispatcher(t, primary, nil,
		WithMonoClock(clock.mono),
		WithMaxRetryAfter(time.Second),
	)

	res := d.Invoke(context.Background(), false, okBlock)
	assert.Same(t, tooMany, res.Err)
	assert.EqualValues(t, 1, primary.calls.Load())

	res = d.Invoke(context.Background(), false, okBlock)
	assert.Same(t, tooMany, res.Err)
	clock.advance(4999 * time.Millisecond)
	res = d.Invoke(context.Background(), true, okBlock)
	assert.Same(t, tooMany, res.Err)
	assert.EqualValues(t, 1, primary.calls.Load(), "gated calls must not reach the backend")

	clock.advance(2 * time.Millisecond)
	res = d.Invoke(context.Background(), false, okBlock)
	require.True(t, res.IsSuccess(), "%v", res.Err)
	assert.Equal(t, "ok", res.Value)
	assert.EqualValues(t, 2, primary.calls.Load())
}

func TestInvokeRecoversPanic(t *testing.T) {
	primary := newFakeBackend("https://api.example/")
	d := newTestDispatcher(t, primary, nil)

	res := Invoke(context.Background(), d, false, func(ctx context.Context, api fakeAPI) (int, error) {
		panic("kaboom")
	})
	require.False(t, res.IsSuccess())
	assert.ErrorIs(t, res.Err, ErrParse)
	assert.ErrorIs(t, res.Err, ErrInternalPanic)
	assert.EqualValues(t, 1, primary.calls.Load(), "parse errors are not retried")
}

func TestInvokeBlockErrorPassthrough(t *testing.T) {
	primary := newFakeBackend("https://api.example/")
	d := newTestDispatcher(t, primary, nil)

	res := Invoke(context.Background(), d, true, func(ctx context.Context, api fakeAPI) (int, error) {
		return 0, NewHTTPError(404, "not found")
	})
	var httpErr *HTTPError
	require.ErrorAs(t, res.Err, &httpErr)
	assert.Equal(t, 404, httpErr.Code)
}

// chainRecorder logs handler invocations in order.
type chainRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *chainRecorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

func (r *chainRecorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type roleHandler struct {
	role Role
	fn   HandlerFunc[fakeAPI]
}

func (h roleHandler) Role() Role { return h.role }

func (h roleHandler) Handle(ctx context.Context, b Backend[fakeAPI], err Error, call *Call[fakeAPI]) Result[any] {
	return h.fn(ctx, b, err, call)
}

func TestHandlerChainOrderAndPassThrough(t *testing.T) {
	original := NewHTTPError(StatusForbidden, "forbidden")
	primary := newFakeBackend("https://api.example/", Failure[any](original))
	rec := &chainRecorder{}

	unchanged := func(name string) ErrorHandler[fakeAPI] {
		return HandlerFunc[fakeAPI](func(ctx context.Context, b Backend[fakeAPI], err Error, call *Call[fakeAPI]) Result[any] {
			rec.add(name)
			return Failure[any](err)
		})
	}

	d := newTestDispatcher(t, primary, []ErrorHandler[fakeAPI]{unchanged("a"), unchanged("b"), unchanged("c")})
	res := d.Invoke(context.Background(), false, okBlock)

	assert.Same(t, original, res.Err)
	assert.Equal(t, []string{"a", "b", "c"}, rec.list(), "no second pass when nothing changed")
}

func TestHandlerChainStopsOnSuccess(t *testing.T) {
	primary := newFakeBackend("https://api.example/", Failure[any](NewHTTPError(StatusUnauthorized, "unauthorized")))
	rec := &chainRecorder{}

	fixer := HandlerFunc[fakeAPI](func(ctx context.Context, b Backend[fakeAPI], err Error, call *Call[fakeAPI]) Result[any] {
		rec.add("fixer")
		return Success[any]("fixed")
	})
	after := HandlerFunc[fakeAPI](func(ctx context.Context, b Backend[fakeAPI], err Error, call *Call[fakeAPI]) Result[any] {
		rec.add("after")
		return Failure[any](err)
	})

	d := newTestDispatcher(t, primary, []ErrorHandler[fakeAPI]{fixer, after})
	res := Cast[string](d.Invoke(context.Background(), false, okBlock))

	require.True(t, res.IsSuccess())
	assert.Equal(t, "fixed", res.Value)
	assert.Equal(t, []string{"fixer"}, rec.list())
}

func TestHandlerChainSecondPass(t *testing.T) {
	errA := NewHTTPError(StatusConflict, "a")
	errB := NewHTTPError(StatusMisdirectedRequest, "b")
	errC := NewHTTPError(StatusUnprocessableEntity, "c")
	errD := NewHTTPError(StatusBadRequest, "d")

	primary := newFakeBackend("https://api.example/", Failure[any](errA))
	rec := &chainRecorder{}

	// first turns A into B and, on its second pass, C into D.
	first := HandlerFunc[fakeAPI](func(ctx context.Context, b Backend[fakeAPI], err Error, call *Call[fakeAPI]) Result[any] {
		rec.add("first:" + err.(*HTTPError).Message)
		switch err {
		case errA:
			return Failure[any](errB)
		case errC:
			return Failure[any](errD)
		}
		return Failure[any](err)
	})
	routing := roleHandler{role: RoleRouting, fn: func(ctx context.Context, b Backend[fakeAPI], err Error, call *Call[fakeAPI]) Result[any] {
		rec.add("routing:" + err.(*HTTPError).Message)
		if err == errB {
			return Failure[any](errC)
		}
		return Failure[any](err)
	}}
	idle := HandlerFunc[fakeAPI](func(ctx context.Context, b Backend[fakeAPI], err Error, call *Call[fakeAPI]) Result[any] {
		rec.add("idle:" + err.(*HTTPError).Message)
		return Failure[any](err)
	})

	d := newTestDispatcher(t, primary, []ErrorHandler[fakeAPI]{first, routing, idle})
	res := d.Invoke(context.Background(), false, okBlock)

	assert.Same(t, errD, res.Err)
	assert.Equal(t, []string{"first:a", "routing:b", "idle:c", "first:c"}, rec.list(),
		"only the recovery handler that changed the error runs again")
}

func TestHandlersNeverSeeSuccess(t *testing.T) {
	primary := newFakeBackend("https://api.example/", Success[any]("ok"))
	h := HandlerFunc[fakeAPI](func(ctx context.Context, b Backend[fakeAPI], err Error, call *Call[fakeAPI]) Result[any] {
		t.Fatal("handler must not be called on success")
		return Failure[any](err)
	})

	d := newTestDispatcher(t, primary, []ErrorHandler[fakeAPI]{h})
	res := d.Invoke(context.Background(), false, okBlock)
	assert.True(t, res.IsSuccess())
}

func TestCallTimestampSharedAcrossRetries(t *testing.T) {
	clock := &manualClock{}
	clock.now.Store(1234)

	var mu sync.Mutex
	var stamps []time.Duration
	h := HandlerFunc[fakeAPI](func(ctx context.Context, b Backend[fakeAPI], err Error, call *Call[fakeAPI]) Result[any] {
		mu.Lock()
		stamps = append(stamps, call.Timestamp)
		mu.Unlock()
		clock.advance(time.Second)
		return Failure[any](err)
	})

	primary := newFakeBackend("https://api.example/", Failure[any](NewConnectionError(false, nil)))
	d := newTestDispatcher(t, primary, []ErrorHandler[fakeAPI]{h},
		WithMonoClock(clock.mono),
		WithSleep((&recordingSleep{}).sleep),
	)
	d.Invoke(context.Background(), false, okBlock)

	require.Len(t, stamps, 3)
	for _, s := range stamps {
		assert.Equal(t, 1234*time.Millisecond, s)
	}
}

func TestDispatcherMetricsAndLogging(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	handler := memory.New()
	logger := &log.Logger{Handler: handler, Level: log.DebugLevel}

	primary := newFakeBackend("https://api.example/",
		Failure[any](NewConnectionError(false, nil)),
		Success[any]("ok"),
	)
	d := newTestDispatcher(t, primary, nil,
		WithMetrics(m),
		WithLogger(logger),
		WithSleep((&recordingSleep{}).sleep),
	)
	d.Invoke(context.Background(), false, okBlock)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Calls.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retries))
	require.NotEmpty(t, handler.Entries)
	assert.Equal(t, "dispatch: retrying call", handler.Entries[0].Message)
	assert.Equal(t, 1, handler.Entries[0].Fields["attempt"])

	_, err = NewMetrics(reg)
	assert.Error(t, err, "collectors cannot be registered twice")
}

func TestOutcomeLabels(t *testing.T) {
	assert.Equal(t, "success", outcome(nil))
	assert.Equal(t, "too_many_requests", outcome(NewTooManyRequests(1)))
	assert.Equal(t, "http", outcome(NewHTTPError(500, "")))
	assert.Equal(t, "parse", outcome(NewParseError(errors.New("x"))))
	assert.Equal(t, "certificate", outcome(NewCertificate(nil)))
	assert.Equal(t, "no_internet", outcome(NewNoInternet(nil)))
}
