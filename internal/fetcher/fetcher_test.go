package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) recorded() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     ExponentialBackoff(time.Second),
		Jitter:      func() time.Duration { return 2 * time.Second },
	}
}

func newTestFetcher(t *testing.T, handler http.HandlerFunc) (*Fetcher, *fakeClock, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	clock := &fakeClock{now: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	f := New(&Config{
		BaseURL:      srv.URL,
		PathTemplate: "/detail?pkPmsMain={id}",
		Timeout:      200 * time.Millisecond,
		Policy:       testPolicy(),
		Clock:        clock,
	})
	t.Cleanup(func() { _ = f.Close() })
	return f, clock, srv
}

func TestFetchSuccessFirstAttempt(t *testing.T) {
	var gotUA, gotID string
	f, clock, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotID = r.URL.Query().Get("pkPmsMain")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	})

	doc, err := f.Fetch(context.Background(), "NzA0NDQ5NDY=")
	require.NoError(t, err)

	assert.Equal(t, "NzA0NDQ5NDY=", doc.ID)
	assert.Equal(t, "NzA0NDQ5NDY=", gotID)
	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Equal(t, http.StatusOK, doc.StatusCode)
	assert.Contains(t, string(doc.Body), "ok")
	assert.Equal(t, []time.Duration{2 * time.Second}, clock.recorded(), "only the post-success jitter")
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	f, clock, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("third time"))
	})

	doc, err := f.Fetch(context.Background(), "abc")
	require.NoError(t, err)

	assert.Equal(t, "third time", string(doc.Body))
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 2 * time.Second}, clock.recorded())
}

func TestFetchRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	f, clock, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := f.Fetch(context.Background(), "abc")
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindRetriesExhausted, fe.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
	assert.Equal(t, 3, fe.Attempts)
	assert.True(t, IsKind(fe.Err, KindHTTPStatus))
	assert.EqualValues(t, 3, calls.Load())

	var total time.Duration
	for _, d := range clock.recorded() {
		total += d
	}
	assert.GreaterOrEqual(t, total, 6*time.Second)
	assert.Len(t, clock.recorded(), 2, "no backoff after the final attempt")
}

func TestFetchTimeoutIsClassified(t *testing.T) {
	f, _, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	_, err := f.Fetch(context.Background(), "slow")
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, KindRetriesExhausted, fe.Kind)
	assert.True(t, IsKind(fe.Err, KindTimeout), "last attempt: %v", fe.Err)
}

func TestFetchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	clock := &fakeClock{}
	f := New(&Config{BaseURL: addr, Policy: testPolicy(), Clock: clock, Timeout: time.Second})
	defer f.Close()

	_, err := f.Fetch(context.Background(), "abc")
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.True(t, IsKind(fe.Err, KindNetwork), "last attempt: %v", fe.Err)
}

func TestFetchCanceledContext(t *testing.T) {
	var calls atomic.Int32
	f, _, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "abc")
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsKind(err, KindRetriesExhausted))
}

func TestURLEscapesIdentifier(t *testing.T) {
	f := New(&Config{BaseURL: "https://example.test/", PathTemplate: "/q?id={id}"})
	defer f.Close()

	assert.Equal(t, "https://example.test/q?id=a%2Bb%3D", f.URL("a+b="))
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.Backoff(1))
	assert.Equal(t, 4*time.Second, p.Backoff(2))

	for i := 0; i < 100; i++ {
		j := p.Jitter()
		assert.GreaterOrEqual(t, j, time.Second)
		assert.LessOrEqual(t, j, 3*time.Second)
	}
}

func newLimitedFetcher(t *testing.T, perSecond float64) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	t.Cleanup(srv.Close)

	f := New(&Config{
		BaseURL:       srv.URL,
		PathTemplate:  "/detail?pkPmsMain={id}",
		Timeout:       200 * time.Millisecond,
		Policy:        RetryPolicy{MaxAttempts: 1},
		Clock:         &fakeClock{},
		RatePerSecond: perSecond,
		RateBurst:     1,
	})
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestFetchLimiterSpacesSharedCallers(t *testing.T) {
	f := newLimitedFetcher(t, 20)

	start := time.Now()
	var wg sync.WaitGroup
	for _, id := range []string{"T-1", "T-2", "T-3"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.Fetch(context.Background(), id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	// Burst 1 at 20/s: the third request waits for two 50ms tokens.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestFetchLimiterWaitCanceled(t *testing.T) {
	f := newLimitedFetcher(t, 1)

	_, err := f.Fetch(context.Background(), "T-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	// No deadline, so the limiter blocks until cancel fires.
	doc, err := f.Fetch(ctx, "T-2")
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchLimiterTokenBeyondDeadline(t *testing.T) {
	f := newLimitedFetcher(t, 0.01)

	_, err := f.Fetch(context.Background(), "T-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	doc, err := f.Fetch(ctx, "T-2")
	require.Error(t, err)
	assert.Nil(t, doc)
	assert.NoError(t, ctx.Err())
	assert.True(t, IsKind(err, KindTimeout))

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "T-2", fe.ID)
	assert.Zero(t, fe.Attempts)
}
