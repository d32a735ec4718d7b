package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/itohio/goxing/pkg/config"
)

var _ Sender = (*HTTPSender)(nil)

// HTTPSender posts reports as JSON to the configured URL.
type HTTPSender struct {
	url    string
	client *http.Client
	signer *Signer
}

// NewHTTPSender creates a sender. signer may be nil.
func NewHTTPSender(cfg *config.CloudConfig, signer *Signer) *HTTPSender {
	return &HTTPSender{
		url:    cfg.URL,
		client: &http.Client{Timeout: cfg.Timeout},
		signer: signer,
	}
}

// Send posts r.
func (s *HTTPSender) Send(ctx context.Context, r Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return Post(ctx, s.client, s.url, body, s.signer)
}

// Post sends body as JSON to url with an optional bearer token and treats any
// non-2xx response as an error.
func Post(ctx context.Context, client *http.Client, url string, body []byte, signer *Signer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	auth, err := signer.Authorization()
	if err != nil {
		return err
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to %s: %w", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status from %s: %s", url, resp.Status)
	}
	return nil
}
