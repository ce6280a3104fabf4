package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benevia/backend/config"
	"github.com/benevia/backend/pkg/apperr"
)

// ProviderSession is the provider's view of an identity-proofing session.
type ProviderSession struct {
	SessionID  string `json:"session_id"`
	SessionURL string `json:"session_url"`
	Status     string `json:"status"`
}

// Client talks to the external identity-proofing provider over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a provider client from config.
func NewClient(cfg config.VerificationConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:  logger,
	}
}

// CreateSession opens a new proofing session for the user with the provider.
// callbackURL, when set, is where the provider redirects after the flow.
func (c *Client) CreateSession(ctx context.Context, userID uuid.UUID, callbackURL string) (*ProviderSession, error) {
	fields := map[string]string{"reference_id": userID.String()}
	if callbackURL != "" {
		fields["callback_url"] = callbackURL
	}
	body, _ := json.Marshal(fields)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var out ProviderSession
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if out.SessionID == "" {
		return nil, fmt.Errorf("provider returned empty session id: %w", apperr.ErrUpstream)
	}
	return &out, nil
}

// GetStatus fetches the provider-side status of a session. Status is always
// provider-owned; nothing is cached here.
func (c *Client) GetStatus(ctx context.Context, sessionID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/sessions/"+sessionID, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var out ProviderSession
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// DeleteSession discards a provider-side session.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/sessions/"+sessionID, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("verification provider unreachable", zap.Error(err), zap.String("url", req.URL.Path))
		return fmt.Errorf("provider request: %v: %w", err, apperr.ErrUpstream)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return apperr.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("verification provider error",
			zap.Int("status", resp.StatusCode), zap.String("url", req.URL.Path))
		return fmt.Errorf("provider status %d: %w", resp.StatusCode, apperr.ErrUpstream)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %v: %w", err, apperr.ErrUpstream)
	}
	return nil
}
