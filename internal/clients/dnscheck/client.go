package dnscheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"crm-server/internal/observability"
)

// Resolver queries one public DNS-over-HTTPS endpoint
type Resolver struct {
	endpoint   string
	httpClient *http.Client
	logger     *observability.Logger
}

// NewResolver creates a resolver for a DNS-over-HTTPS JSON endpoint
func NewResolver(endpoint string, logger *observability.Logger) *Resolver {
	return &Resolver{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Endpoint returns the resolver's endpoint URL
func (r *Resolver) Endpoint() string {
	return r.endpoint
}

type dohResponse struct {
	Answer []struct {
		Data string `json:"data"`
	} `json:"Answer"`
}

// Lookup resolves a record name against the endpoint and returns the answer
// data strings. A missing or empty Answer section means no record was found
// and yields an empty slice, not an error.
func (r *Resolver) Lookup(ctx context.Context, name, recordType string) ([]string, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "dns_name", Value: name},
		observability.Field{Key: "dns_type", Value: recordType},
		observability.Field{Key: "resolver", Value: r.endpoint},
	)

	query := url.Values{}
	query.Set("name", name)
	query.Set("type", recordType)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create dns query: %w", err)
	}
	req.Header.Set("Accept", "application/dns-json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Error(ctx, "failed to query dns resolver", err)
		return nil, fmt.Errorf("failed to query dns resolver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Error(ctx, "dns resolver returned error", fmt.Errorf("status %d", resp.StatusCode))
		return nil, fmt.Errorf("dns resolver returned status %d", resp.StatusCode)
	}

	var parsed dohResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		r.logger.Error(ctx, "failed to parse dns response", err)
		return nil, fmt.Errorf("failed to parse dns response: %w", err)
	}

	answers := make([]string, 0, len(parsed.Answer))
	for _, a := range parsed.Answer {
		answers = append(answers, a.Data)
	}
	return answers, nil
}
