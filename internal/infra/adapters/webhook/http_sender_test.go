//go:build !integration

package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailroom-billing/internal/domain/ports/adapter"
)

func TestHTTPSender_Send(t *testing.T) {
	ts := time.Unix(1760000000, 0)

	t.Run("sends headers and body", func(t *testing.T) {
		var got *http.Request
		var body []byte
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r
			body, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte("queued"))
		}))
		defer srv.Close()
		s := NewHTTPSender(time.Second, "TrailRoom-Webhook/1.0")

		resp, err := s.Send(context.Background(), adapter.WebhookRequest{URL: srv.URL, Body: []byte(`{"a":1}`), Signature: "abc", Event: "credits.low", Timestamp: ts})

		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, "queued", resp.Body)
		assert.Equal(t, `{"a":1}`, string(body))
		assert.Equal(t, "TrailRoom-Webhook/1.0", got.Header.Get("User-Agent"))
		assert.Equal(t, "abc", got.Header.Get("X-Webhook-Signature"))
		assert.Equal(t, "credits.low", got.Header.Get("X-Event-Type"))
		assert.Equal(t, "1760000000", got.Header.Get("X-Webhook-Timestamp"))
		assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	})

	t.Run("error statuses are responses", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		resp, err := NewHTTPSender(time.Second, "ua").Send(context.Background(), adapter.WebhookRequest{URL: srv.URL, Timestamp: ts})

		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})

	t.Run("redirects are not followed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "http://127.0.0.1:1/elsewhere", http.StatusFound)
		}))
		defer srv.Close()

		resp, err := NewHTTPSender(time.Second, "ua").Send(context.Background(), adapter.WebhookRequest{URL: srv.URL, Timestamp: ts})

		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.StatusCode)
	})

	t.Run("timeouts are errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		_, err := NewHTTPSender(20*time.Millisecond, "ua").Send(context.Background(), adapter.WebhookRequest{URL: srv.URL, Timestamp: ts})

		assert.Error(t, err)
	})
}
