// Package history fetches conversation history from the external REST
// service. The engine only ever reads history; writes happen server-side as
// messages flow through the socket.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Record is one stored message as returned by the history endpoint.
// Delivered/seen are empty when the server reports null.
type Record struct {
	ID          int64
	From        string
	To          string
	Message     string
	Timestamp   string
	DeliveredAt string
	SeenAt      string
}

// wireRecord matches the endpoint's JSON. The server identifies users by
// numeric id in history responses while the socket protocol uses strings.
type wireRecord struct {
	ID          int64       `json:"id"`
	From        json.Number `json:"from"`
	To          json.Number `json:"to"`
	Message     string      `json:"message"`
	Timestamp   string      `json:"timestamp"`
	DeliveredAt *string     `json:"delivered_at"`
	SeenAt      *string     `json:"seen_at"`
}

// Client talks to the history service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a history client for a base URL such as
// "http://localhost:8000".
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With().Str("component", "history").Logger(),
	}
}

// Fetch returns the ordered message history between the local user and a
// peer.
func (c *Client) Fetch(ctx context.Context, localUserID, peerID string) ([]Record, error) {
	addr := fmt.Sprintf("%s/history/%s/%s",
		c.baseURL, url.PathEscape(localUserID), url.PathEscape(peerID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build history request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch history")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("history service returned %s", resp.Status)
	}

	var wire []wireRecord
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, errors.Wrap(err, "decode history response")
	}

	records := make([]Record, 0, len(wire))
	for _, w := range wire {
		r := Record{
			ID:        w.ID,
			From:      w.From.String(),
			To:        w.To.String(),
			Message:   w.Message,
			Timestamp: w.Timestamp,
		}
		if w.DeliveredAt != nil {
			r.DeliveredAt = *w.DeliveredAt
		}
		if w.SeenAt != nil {
			r.SeenAt = *w.SeenAt
		}
		records = append(records, r)
	}

	c.logger.Debug().Str("peer_id", peerID).Int("count", len(records)).Msg("history loaded")
	return records, nil
}
