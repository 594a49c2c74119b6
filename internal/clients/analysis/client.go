// Package analysis provides the HTTP client for the external portfolio
// analysis service. The service owns all financial numerics; this client
// only ships payloads and classifies failures.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/domain"
)

// Facet endpoints on the analysis service. One RPC-like call per facet.
var facetPaths = map[domain.Facet]string{
	domain.FacetComparison:   "/api/v1/compare",
	domain.FacetComposition:  "/api/v1/composition",
	domain.FacetPerformance:  "/api/v1/performance",
	domain.FacetRisk:         "/api/v1/risk",
	domain.FacetSector:       "/api/v1/sector-allocation",
	domain.FacetScenario:     "/api/v1/stress-test",
	domain.FacetDifferential: "/api/v1/differential-returns",
}

// apiErrorBody is the structured error shape the analysis service returns
// for 4xx responses.
type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client calls the analysis service over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new analysis service client.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("client", "analysis").Logger(),
	}
}

// Compare runs the overall pairwise comparison.
func (c *Client) Compare(ctx context.Context, p domain.ComparisonPayload) (json.RawMessage, error) {
	return c.post(ctx, domain.FacetComparison, p)
}

// Composition fetches a holdings composition comparison.
func (c *Client) Composition(ctx context.Context, p domain.CompositionPayload) (json.RawMessage, error) {
	return c.post(ctx, domain.FacetComposition, p)
}

// Performance fetches a performance comparison.
func (c *Client) Performance(ctx context.Context, p domain.PerformancePayload) (json.RawMessage, error) {
	return c.post(ctx, domain.FacetPerformance, p)
}

// Risk fetches a risk metrics comparison.
func (c *Client) Risk(ctx context.Context, p domain.RiskPayload) (json.RawMessage, error) {
	return c.post(ctx, domain.FacetRisk, p)
}

// SectorAllocation fetches a sector allocation comparison.
func (c *Client) SectorAllocation(ctx context.Context, p domain.SectorPayload) (json.RawMessage, error) {
	return c.post(ctx, domain.FacetSector, p)
}

// StressTest runs a scenario stress-test comparison.
func (c *Client) StressTest(ctx context.Context, p domain.ScenarioPayload) (json.RawMessage, error) {
	return c.post(ctx, domain.FacetScenario, p)
}

// DifferentialReturns fetches differential returns between the pair.
func (c *Client) DifferentialReturns(ctx context.Context, p domain.DifferentialPayload) (json.RawMessage, error) {
	return c.post(ctx, domain.FacetDifferential, p)
}

// FacetCall dispatches a payload to the facet's endpoint. The switch is
// exhaustive over the payload union; the orchestrator uses this entry
// point so all facets share one transport and classification path.
func (c *Client) FacetCall(ctx context.Context, facet domain.Facet, payload domain.Payload) (json.RawMessage, error) {
	switch p := payload.(type) {
	case domain.ComparisonPayload:
		return c.Compare(ctx, p)
	case domain.CompositionPayload:
		return c.Composition(ctx, p)
	case domain.PerformancePayload:
		return c.Performance(ctx, p)
	case domain.RiskPayload:
		return c.Risk(ctx, p)
	case domain.SectorPayload:
		return c.SectorAllocation(ctx, p)
	case domain.ScenarioPayload:
		return c.StressTest(ctx, p)
	case domain.DifferentialPayload:
		return c.DifferentialReturns(ctx, p)
	default:
		return nil, fmt.Errorf("no endpoint for payload type %T (facet %s)", payload, facet)
	}
}

// post sends the payload and classifies any failure into the error
// taxonomy: transport (no status), rate-limited (429), server (5xx),
// or structured API error (other 4xx).
func (c *Client) post(ctx context.Context, facet domain.Facet, payload any) (json.RawMessage, error) {
	path, ok := facetPaths[facet]
	if !ok {
		return nil, fmt.Errorf("no endpoint registered for facet %s", facet)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", facet, err)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", facet, err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug().Str("facet", string(facet)).Str("url", url).Msg("Calling analysis service")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.NewTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewTransportError(err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return json.RawMessage(respBody), nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.NewRateLimitedError(resp.StatusCode, parseRetryAfter(resp))

	case resp.StatusCode >= 500:
		return nil, domain.NewServerError(resp.StatusCode, truncate(string(respBody), 200))

	default:
		var apiErr apiErrorBody
		if err := json.Unmarshal(respBody, &apiErr); err != nil || apiErr.Message == "" {
			apiErr = apiErrorBody{
				Code:    "unknown",
				Message: fmt.Sprintf("analysis service returned status %d", resp.StatusCode),
			}
		}
		return nil, domain.NewAPIError(resp.StatusCode, apiErr.Code, apiErr.Message)
	}
}

// parseRetryAfter reads a Retry-After header in seconds, returning 0 when
// absent or unparseable (the default backoff window applies).
func parseRetryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
