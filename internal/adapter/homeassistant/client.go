package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/berfenger/plenticharge/internal/core/domain"
)

// Client is a thin REST client for the Home Assistant states API using a
// long-lived access token.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// EntityState is the raw state object returned by /api/states/<entity>.
type EntityState struct {
	EntityId   string          `json:"entity_id"`
	State      string          `json:"state"`
	Attributes json.RawMessage `json:"attributes"`
}

func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// GetState fetches the plain state value of an entity. "unknown" and
// "unavailable" surface as SensorUnavailableError, never as a zero value.
func (c *Client) GetState(ctx context.Context, entityId string) (string, error) {
	es, err := c.fetchEntity(ctx, entityId)
	if err != nil {
		return "", err
	}
	return es.State, nil
}

// GetFloatState fetches a state and parses it as a float.
func (c *Client) GetFloatState(ctx context.Context, entityId string) (float64, error) {
	state, err := c.GetState(ctx, entityId)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(state, 64)
	if err != nil {
		return 0, domain.SensorUnavailableError{Entity: entityId}
	}
	return value, nil
}

// GetBoolState fetches a state and maps "on"/"off" to a bool.
func (c *Client) GetBoolState(ctx context.Context, entityId string) (bool, error) {
	state, err := c.GetState(ctx, entityId)
	if err != nil {
		return false, err
	}
	return state == "on", nil
}

// GetStateWithAttributes fetches state and attributes in one call, used for
// the price entity whose forecast lives in attributes.
func (c *Client) GetStateWithAttributes(ctx context.Context, entityId string, attributes any) (string, error) {
	es, err := c.fetchEntity(ctx, entityId)
	if err != nil {
		return "", err
	}
	if attributes != nil && len(es.Attributes) > 0 {
		if err := json.Unmarshal(es.Attributes, attributes); err != nil {
			return "", fmt.Errorf("decode attributes of %s: %w", entityId, err)
		}
	}
	return es.State, nil
}

func (c *Client) fetchEntity(ctx context.Context, entityId string) (*EntityState, error) {
	reqURL := fmt.Sprintf("%s/api/states/%s", c.baseURL, url.PathEscape(entityId))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req)
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("entity fetch failed", zap.String("entity", entityId), zap.Error(err))
		return nil, domain.SensorUnavailableError{Entity: entityId}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, domain.SensorUnavailableError{Entity: entityId}
	}
	var es EntityState
	if err := json.NewDecoder(resp.Body).Decode(&es); err != nil {
		return nil, fmt.Errorf("decode state of %s: %w", entityId, err)
	}
	if es.State == "unknown" || es.State == "unavailable" {
		return nil, domain.SensorUnavailableError{Entity: entityId}
	}
	return &es, nil
}

func (c *Client) applyHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
}
