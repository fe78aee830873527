package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"GameStatsSync/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestClient(retries int) *Client {
	return NewClient("test", config.PlatformConfig{
		Timeout:    5,
		RetryCount: retries,
		RetryWait:  time.Millisecond,
	}, quietLogger())
}

func TestFetchClassifiesStatus(t *testing.T) {
	testCases := []struct {
		status int
		expect error
	}{
		{status: http.StatusTooManyRequests, expect: ErrRateLimited},
		{status: http.StatusUnauthorized, expect: ErrForbidden},
		{status: http.StatusForbidden, expect: ErrForbidden},
		{status: http.StatusBadGateway, expect: ErrForbidden},
		{status: http.StatusNotFound, expect: ErrFetchFailed},
		{status: http.StatusInternalServerError, expect: ErrFetchFailed},
	}

	for _, test := range testCases {
		t.Run(fmt.Sprint(test.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(test.status)
			}))
			defer srv.Close()

			_, err := newTestClient(0).Fetch(context.Background(), srv.URL, ExpectHTML)
			require.ErrorIs(t, err, test.expect)

			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr))
			require.Equal(t, test.status, statusErr.Status)
		})
	}
}

func TestFetchRetriesOtherFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(3).Fetch(context.Background(), srv.URL, ExpectHTML)
	require.ErrorIs(t, err, ErrFetchFailed)
	require.Equal(t, int32(4), calls.Load())
}

func TestFetchDoesNotRetryRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(3).Fetch(context.Background(), srv.URL, ExpectJSON)
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, int32(1), calls.Load())
}

func TestFetchRecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	p, err := newTestClient(3).Fetch(context.Background(), srv.URL, ExpectJSON)
	require.NoError(t, err)

	var body struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, p.DecodeJSON(&body))
	require.True(t, body.OK)
	require.Equal(t, int32(2), calls.Load())
}

func TestFetchMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>maintenance</body></html>`))
	}))
	defer srv.Close()

	c := newTestClient(0)
	_, err := c.Fetch(context.Background(), srv.URL, ExpectJSON)
	require.ErrorIs(t, err, ErrMalformedResponse)

	p, err := c.Fetch(context.Background(), srv.URL, ExpectHTML)
	require.NoError(t, err)
	doc, err := p.Document()
	require.NoError(t, err)
	require.Equal(t, "maintenance", doc.Find("body").Text())
}

func TestFetchSendsIdentityHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := newTestClient(0).Fetch(context.Background(), srv.URL, ExpectJSON)
	require.NoError(t, err)
	require.Equal(t, userAgent, got.Get("User-Agent"))
	require.Equal(t, accept, got.Get("Accept"))
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		err    error
		expect Outcome
	}{
		{err: nil, expect: OutcomeOK},
		{err: &StatusError{URL: "u", Status: 429, kind: ErrRateLimited}, expect: OutcomeRetryable},
		{err: &StatusError{URL: "u", Status: 403, kind: ErrForbidden}, expect: OutcomeSkip},
		{err: fmt.Errorf("page 3: %w", ErrMalformedResponse), expect: OutcomeSkip},
		{err: fmt.Errorf("%w: u: connection reset", ErrFetchFailed), expect: OutcomeSkip},
		{err: errors.New("duplicate key"), expect: OutcomeSkip},
		{err: fmt.Errorf("unit: %w", context.Canceled), expect: OutcomeFatal},
	}
	for _, test := range testCases {
		require.Equal(t, test.expect, Classify(test.err), "%v", test.err)
	}
}
