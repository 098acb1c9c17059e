package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"streaming-engine/ddd/domain/gateway"
	"streaming-engine/ddd/domain/vo"
	"streaming-engine/pkg/logger"
)

// HTTPSink POSTs the outcome as an urlencoded form.
type HTTPSink struct {
	client   *http.Client
	fallback string
}

// NewHTTPSink builds a sink that posts to the job's callback URL, or to fallback when the
// job carries none.
func NewHTTPSink(fallback string, timeout time.Duration) *HTTPSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSink{client: &http.Client{Timeout: timeout}, fallback: fallback}
}

var _ gateway.NotificationSink = (*HTTPSink)(nil)

func (s *HTTPSink) Notify(ctx context.Context, target string, outcome vo.JobOutcome) error {
	if target == "" {
		target = s.fallback
	}
	if target == "" {
		logger.Debug("No notification target configured, outcome dropped", map[string]interface{}{
			"id":      outcome.ID,
			"success": outcome.Success,
		})
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(outcome.Form().Encode()))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification to %s: %w", target, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification to %s returned status %d", target, resp.StatusCode)
	}
	return nil
}
