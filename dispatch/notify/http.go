package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPGateway posts actions to a notification service endpoint. The
// action ID travels in the Idempotency-Key header so the remote side
// can de-duplicate retried sends.
type HTTPGateway struct {
	client *http.Client
	url    string
	token  string
}

// NewHTTPGateway creates a gateway targeting url. token, when non-empty,
// is sent as a bearer token. A nil client uses http.DefaultClient;
// request deadlines come from the context.
func NewHTTPGateway(url, token string, client *http.Client) *HTTPGateway {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPGateway{client: client, url: url, token: token}
}

// Send implements Gateway.
func (g *HTTPGateway) Send(ctx context.Context, action Action) (Delivery, error) {
	body, err := json.Marshal(action)
	if err != nil {
		return Delivery{}, fmt.Errorf("encode action: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return Delivery{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", action.ID)
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Delivery{}, fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Delivery{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Delivery{}, fmt.Errorf("notification service returned %d: %s",
			resp.StatusCode, respBody)
	}

	var delivery Delivery
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &delivery); err != nil {
			return Delivery{}, fmt.Errorf("decode delivery: %w", err)
		}
	}
	if delivery.ActionID == "" {
		delivery.ActionID = action.ID
	}
	return delivery, nil
}
