package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"mediagrab/internal/medias"
	"mediagrab/internal/utils"
)

// Deliverer performs the actual user-facing send. The core only
// produces media values and decides whether a cached handle can stand
// in for a re-upload; the channel behind this interface is someone
// else's problem.
type Deliverer interface {
	// Deliver sends the media and returns the channel-issued handle
	// for the uploaded binary.
	Deliver(ctx context.Context, userID string, media medias.Media) ([]byte, error)
	// DeliverCached re-sends a previous upload by handle, skipping the
	// binary transfer entirely.
	DeliverCached(ctx context.Context, userID string, handle []byte) error
}

// WebhookDeliverer posts deliveries to an HTTP endpoint that fronts
// the actual chat channel.
type WebhookDeliverer struct {
	Endpoint string
	Client   *http.Client
}

func NewWebhookDeliverer(endpoint string) *WebhookDeliverer {
	return &WebhookDeliverer{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: utils.DefaultTimeoutConfig().DeliverTimeout},
	}
}

type deliverRequest struct {
	UserID string          `json:"user_id"`
	Media  json.RawMessage `json:"media,omitempty"`
	Handle []byte          `json:"handle,omitempty"`
}

type deliverResponse struct {
	Handle []byte `json:"handle"`
}

func (d *WebhookDeliverer) Deliver(ctx context.Context, userID string, media medias.Media) ([]byte, error) {
	encoded, err := json.Marshal(media)
	if err != nil {
		return nil, err
	}
	resp, err := d.post(ctx, deliverRequest{UserID: userID, Media: encoded})
	if err != nil {
		return nil, err
	}
	return resp.Handle, nil
}

func (d *WebhookDeliverer) DeliverCached(ctx context.Context, userID string, handle []byte) error {
	_, err := d.post(ctx, deliverRequest{UserID: userID, Handle: handle})
	return err
}

func (d *WebhookDeliverer) post(ctx context.Context, payload deliverRequest) (*deliverResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("delivery webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("delivery webhook returned status %d: %s", resp.StatusCode, msg)
	}

	var out deliverResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("delivery webhook response: %w", err)
	}
	return &out, nil
}
