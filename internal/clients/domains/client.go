package domains

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"crm-server/internal/observability"
)

var ErrProviderRequestFailed = errors.New("domain provider request failed")

// DNSRecord is one DNS record the provider requires for verification
type DNSRecord struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Value    string `json:"value"`
	Status   string `json:"status,omitempty"`
	Priority int    `json:"priority,omitempty"`
}

// Domain is the provider's view of a registered sending domain
type Domain struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Status  string      `json:"status"`
	Records []DNSRecord `json:"records"`
}

// Client talks to the email provider's domain registration API
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *observability.Logger
}

// NewClient creates a new domain registration client
func NewClient(apiKey, baseURL string, logger *observability.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// AddDomain registers a domain with the provider and returns the provider
// domain id, its required DNS records and the initial verification status.
func (c *Client) AddDomain(ctx context.Context, name string) (Domain, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "domain_name", Value: name},
	)

	payload, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return Domain{}, fmt.Errorf("failed to marshal add domain request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/domains", bytes.NewBuffer(payload))
	if err != nil {
		return Domain{}, fmt.Errorf("failed to create add domain request: %w", err)
	}

	var domain Domain
	if err := c.do(ctx, req, &domain); err != nil {
		return Domain{}, err
	}

	c.logger.Info(ctx, "domain registered with provider")
	return domain, nil
}

// GetDomain fetches the current provider state of a registered domain
func (c *Client) GetDomain(ctx context.Context, domainID string) (Domain, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "provider_domain_id", Value: domainID},
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/domains/"+domainID, nil)
	if err != nil {
		return Domain{}, fmt.Errorf("failed to create get domain request: %w", err)
	}

	var domain Domain
	if err := c.do(ctx, req, &domain); err != nil {
		return Domain{}, err
	}
	return domain, nil
}

func (c *Client) do(ctx context.Context, req *http.Request, out interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error(ctx, "failed to call domain provider", err)
		return fmt.Errorf("failed to call domain provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var providerErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&providerErr)
		c.logger.Error(ctx, "domain provider returned error",
			fmt.Errorf("status %d: %s", resp.StatusCode, providerErr.Message))
		return fmt.Errorf("%w: status %d: %s", ErrProviderRequestFailed, resp.StatusCode, providerErr.Message)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.Error(ctx, "failed to parse domain provider response", err)
		return fmt.Errorf("failed to parse domain provider response: %w", err)
	}
	return nil
}
