package webhook

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"trailroom-billing/internal/domain/ports/adapter"
)

var _ adapter.WebhookSender = (*HTTPSender)(nil)

const maxResponseBody = 64 << 10

// HTTPSender POSTs signed event bodies to subscriber URLs. Any HTTP status
// is a response; only transport failures are errors.
type HTTPSender struct {
	client    *http.Client
	userAgent string
}

func NewHTTPSender(timeout time.Duration, userAgent string) *HTTPSender {
	return &HTTPSender{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: userAgent,
	}
}

func (s *HTTPSender) Send(ctx context.Context, req adapter.WebhookRequest) (adapter.WebhookResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return adapter.WebhookResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", s.userAgent)
	httpReq.Header.Set("X-Webhook-Signature", req.Signature)
	httpReq.Header.Set("X-Event-Type", req.Event)
	httpReq.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(req.Timestamp.Unix(), 10))

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return adapter.WebhookResponse{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	return adapter.WebhookResponse{StatusCode: resp.StatusCode, Body: string(body)}, nil
}
