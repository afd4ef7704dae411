package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const notRegistered = "NotRegistered"

// FCMClient talks to the Firebase legacy HTTP send endpoint.
type FCMClient struct {
	url    string
	key    string
	client *http.Client
	store  PushStore
}

func NewFCMClient(url, key string, timeout time.Duration, store PushStore) *FCMClient {
	return &FCMClient{
		url:    url,
		key:    key,
		client: &http.Client{Timeout: timeout},
		store:  store,
	}
}

type fcmRequest struct {
	RegistrationIDs []string          `json:"registration_ids"`
	Notification    *Alert            `json:"notification,omitempty"`
	Data            map[string]string `json:"data,omitempty"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

func (c *FCMClient) Broadcast(ctx context.Context, usernames []string, alert Alert) error {
	tokens, err := c.store.Tokens(ctx, usernames)
	if err != nil {
		return fmt.Errorf("notify: failed to resolve tokens: %w", err)
	}
	if len(tokens) == 0 {
		log.Debug().Strs("usernames", usernames).Msg("notify: no devices registered, alert skipped")
		return nil
	}

	resp, err := c.send(ctx, fcmRequest{RegistrationIDs: tokens, Notification: &alert, Data: alert.Data})
	if err != nil {
		return err
	}

	var stale []string
	for i, r := range resp.Results {
		if i < len(tokens) && r.Error == notRegistered {
			stale = append(stale, tokens[i])
		}
	}
	if len(stale) > 0 {
		if err := c.store.DeleteTokens(ctx, stale); err != nil {
			log.Warn().Err(err).Int("tokens", len(stale)).Msg("notify: failed to clean unregistered tokens")
		} else {
			log.Info().Int("tokens", len(stale)).Msg("notify: unregistered tokens removed")
		}
	}

	log.Debug().Strs("usernames", usernames).Int("success", resp.Success).Int("failure", resp.Failure).Msg("notify: alert sent")
	return nil
}

// ValidateToken sends an empty message to token and requires it to be accepted.
func (c *FCMClient) ValidateToken(ctx context.Context, token string) error {
	resp, err := c.send(ctx, fcmRequest{RegistrationIDs: []string{token}})
	if err != nil {
		return err
	}
	if resp.Success != 1 {
		return ErrInvalidToken
	}
	return nil
}

func (c *FCMClient) send(ctx context.Context, payload fcmRequest) (*fcmResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("notify: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("notify: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "key="+c.key)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: provider answered %d", ErrDelivery, res.StatusCode)
	}

	var out fcmResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrDelivery, err)
	}
	return &out, nil
}
