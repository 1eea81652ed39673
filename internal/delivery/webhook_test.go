package delivery

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/cuongbtq/cron-agent/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(retries int) *Client {
	return NewClient(Config{
		RetryAttempts: retries,
		RetryInterval: time.Millisecond,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestFormatMessage(t *testing.T) {
	assert.Equal(t, "**Daily**\n\nhello", FormatMessage("Daily", "hello"))

	long := strings.Repeat("x", 5000)
	msg := FormatMessage("T", long)
	assert.Equal(t, "**T**\n\n"+strings.Repeat("x", MaxBodyChars), msg)

	multi := strings.Repeat("ü", 2000)
	body := strings.TrimPrefix(FormatMessage("T", multi), "**T**\n\n")
	assert.Equal(t, MaxBodyChars, utf8.RuneCountInString(body))
}

func TestClient_Deliver(t *testing.T) {
	var got map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := newTestClient(0).Deliver(context.Background(), srv.URL, "News", "body text")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"content": "**News**\n\nbody text"}, got)
}

func TestClient_Deliver_Retries(t *testing.T) {
	tests := []struct {
		name          string
		statuses      []int
		retries       int
		expectErr     bool
		expectedCalls int32
	}{
		{name: "retries 429 then succeeds", statuses: []int{429, 204}, retries: 3, expectedCalls: 2},
		{name: "retries 5xx then succeeds", statuses: []int{500, 503, 200}, retries: 3, expectedCalls: 3},
		{name: "gives up after retries", statuses: []int{502, 502, 502}, retries: 2, expectErr: true, expectedCalls: 3},
		{name: "4xx is final", statuses: []int{404, 204}, retries: 3, expectErr: true, expectedCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.statuses[n-1])
			}))
			defer srv.Close()

			err := newTestClient(tt.retries).Deliver(context.Background(), srv.URL, "t", "b")
			if tt.expectErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrDelivery)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expectedCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestClient_Deliver_ErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Invalid Webhook Token"}`))
	}))
	defer srv.Close()

	err := newTestClient(0).Deliver(context.Background(), srv.URL, "t", "b")
	require.Error(t, err)
	assert.False(t, domain.IsRetryable(err))
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "Invalid Webhook Token")
}

func TestClient_Deliver_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	err := newTestClient(0).Deliver(context.Background(), target, "t", "b")
	assert.ErrorIs(t, err, domain.ErrDelivery)
}
