package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2arun/pkg/a2a"
)

func TestDispatch_Success(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(nil, RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	cfg := a2a.PushNotificationConfig{URL: srv.URL, Token: "tok"}
	ev := a2a.NewStatusUpdateEvent(&a2a.Task{ID: "t1"}, false)

	err := d.Dispatch(context.Background(), cfg, ev)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestDispatch_4xxNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d := New(nil, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	err := d.Dispatch(context.Background(), a2a.PushNotificationConfig{URL: srv.URL}, a2a.NewStatusUpdateEvent(&a2a.Task{ID: "t1"}, false))
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestDispatch_5xxRetriedThenSucceeds(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(nil, RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond})
	err := d.Dispatch(context.Background(), a2a.PushNotificationConfig{URL: srv.URL}, a2a.NewStatusUpdateEvent(&a2a.Task{ID: "t1"}, false))
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestDispatch_5xxExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := New(nil, RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	err := d.Dispatch(context.Background(), a2a.PushNotificationConfig{URL: srv.URL}, a2a.NewStatusUpdateEvent(&a2a.Task{ID: "t1"}, false))
	require.Error(t, err)
}

func TestRetryPolicy_ExponentialDelay(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: time.Minute}
	assert.Equal(t, time.Second, p.delay(1))
	assert.Equal(t, 2*time.Second, p.delay(2))
	assert.Equal(t, 4*time.Second, p.delay(3))
}

func TestRetryPolicy_CapsAtMaxDelay(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: 3 * time.Second}
	assert.Equal(t, 3*time.Second, p.delay(5))
}
