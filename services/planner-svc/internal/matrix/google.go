package matrix

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fleetrouting/pkg/apperror"
	"fleetrouting/pkg/config"
	"fleetrouting/pkg/domain"
	"fleetrouting/pkg/logger"
	"fleetrouting/pkg/metrics"
)

// GoogleClient queries the Google Distance Matrix API. Requests are batched
// so that origins*destinations never exceeds the element budget, and each
// batch is retried with exponential backoff.
type GoogleClient struct {
	apiKey        string
	apiURL        string
	httpClient    *http.Client
	elementBudget int
	maxRetries    int
	retryDelay    time.Duration
	backoffFactor float64
}

// NewGoogleClient builds a client from the routing configuration.
func NewGoogleClient(cfg *config.RoutingConfig) *GoogleClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	budget := cfg.ElementBudget
	if budget <= 0 {
		budget = 100
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	backoff := cfg.BackoffFactor
	if backoff < 1 {
		backoff = 2
	}

	return &GoogleClient{
		apiKey:        cfg.APIKey,
		apiURL:        cfg.APIURL,
		httpClient:    &http.Client{Timeout: timeout},
		elementBudget: budget,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    delay,
		backoffFactor: backoff,
	}
}

// googleResponse mirrors the Distance Matrix API response shape.
type googleResponse struct {
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
	Rows         []googleRow `json:"rows"`
}

type googleRow struct {
	Elements []googleElement `json:"elements"`
}

type googleElement struct {
	Status   string      `json:"status"`
	Distance googleValue `json:"distance"`
	Duration googleValue `json:"duration"`
}

type googleValue struct {
	Value float64 `json:"value"`
}

// BuildMatrix fills distance (km) and time (minutes) matrices for the given
// locations using the external API. Unresolvable elements get MaxSafe
// substitutes; transport-level failures after all retries abort the build so
// the caller can fall back to a local computation.
func (c *GoogleClient) BuildMatrix(ctx context.Context, locations []*domain.Location) (*domain.Matrix, error) {
	if c.apiKey == "" {
		return nil, apperror.New(apperror.CodeAPIAuthFailed, "routing API key is not configured")
	}

	n := len(locations)
	ids := make([]string, n)
	for i, loc := range locations {
		ids[i] = loc.ID
	}

	dist := make([][]float64, n)
	tm := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		tm[i] = make([]float64, n)
	}

	// Split into batches: origins*destinations per request must stay within
	// the element budget.
	destChunk := n
	if destChunk > c.elementBudget {
		destChunk = c.elementBudget
	}
	originChunk := c.elementBudget / destChunk
	if originChunk < 1 {
		originChunk = 1
	}

	for oi := 0; oi < n; oi += originChunk {
		oEnd := oi + originChunk
		if oEnd > n {
			oEnd = n
		}
		for di := 0; di < n; di += destChunk {
			dEnd := di + destChunk
			if dEnd > n {
				dEnd = n
			}

			resp, err := c.fetchBatch(ctx, locations[oi:oEnd], locations[di:dEnd])
			if err != nil {
				return nil, err
			}

			for r, row := range resp.Rows {
				for e, elem := range row.Elements {
					i, j := oi+r, di+e
					if i >= n || j >= n {
						continue
					}
					if i == j {
						continue
					}
					if elem.Status == "OK" {
						dist[i][j] = elem.Distance.Value / 1000
						tm[i][j] = elem.Duration.Value / 60
					} else {
						// Element could not be resolved; keep the pair
						// unattractive instead of failing the whole build.
						dist[i][j] = domain.MaxSafeDistance
						tm[i][j] = domain.MaxSafeTime
					}
				}
			}
		}
	}

	return &domain.Matrix{
		LocationIDs: ids,
		Distance:    dist,
		Time:        tm,
	}, nil
}

// fetchBatch performs one API request with retries. Auth failures abort
// immediately; rate limiting and transient errors back off and retry.
func (c *GoogleClient) fetchBatch(ctx context.Context, origins, destinations []*domain.Location) (*googleResponse, error) {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Log.Warn("Retrying distance matrix batch",
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return nil, apperror.Wrap(ctx.Err(), apperror.CodeTimeout, "matrix build canceled")
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffFactor)
		}

		resp, err := c.doRequest(ctx, origins, destinations)
		if err == nil {
			metrics.Get().RecordExternalAPICall("distance_matrix", "ok")
			return resp, nil
		}

		if apperror.Is(err, apperror.CodeAPIAuthFailed) {
			metrics.Get().RecordExternalAPICall("distance_matrix", "auth_failed")
			return nil, err
		}
		if apperror.Is(err, apperror.CodeAPIRateLimited) {
			metrics.Get().RecordExternalAPICall("distance_matrix", "rate_limited")
		} else {
			metrics.Get().RecordExternalAPICall("distance_matrix", "error")
		}
		lastErr = err
	}

	return nil, apperror.Wrap(lastErr, apperror.CodeAPIUnavailable, "distance matrix API retries exhausted")
}

func (c *GoogleClient) doRequest(ctx context.Context, origins, destinations []*domain.Location) (*googleResponse, error) {
	params := url.Values{}
	params.Set("origins", joinCoordinates(origins))
	params.Set("destinations", joinCoordinates(destinations))
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeMatrixBuildFailed, "failed to build API request")
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeAPIUnavailable, "distance matrix API request failed")
	}
	defer httpResp.Body.Close()

	switch httpResp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, apperror.New(apperror.CodeAPIRateLimited, "distance matrix API rate limited")
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, apperror.New(apperror.CodeAPIAuthFailed, "distance matrix API authentication failed")
	default:
		return nil, apperror.New(apperror.CodeAPIUnavailable,
			fmt.Sprintf("distance matrix API returned status %d", httpResp.StatusCode))
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeAPIUnavailable, "failed to read API response")
	}

	var resp googleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeMatrixBuildFailed, "failed to decode API response")
	}

	switch resp.Status {
	case "OK":
		return &resp, nil
	case "OVER_QUERY_LIMIT", "RESOURCE_EXHAUSTED":
		return nil, apperror.New(apperror.CodeAPIRateLimited, "distance matrix API quota exceeded")
	case "REQUEST_DENIED":
		return nil, apperror.New(apperror.CodeAPIAuthFailed,
			fmt.Sprintf("distance matrix API request denied: %s", resp.ErrorMessage))
	default:
		return nil, apperror.New(apperror.CodeAPIUnavailable,
			fmt.Sprintf("distance matrix API status %s: %s", resp.Status, resp.ErrorMessage))
	}
}

func joinCoordinates(locations []*domain.Location) string {
	parts := make([]string, len(locations))
	for i, loc := range locations {
		parts[i] = fmt.Sprintf("%f,%f", loc.Latitude, loc.Longitude)
	}
	return strings.Join(parts, "|")
}
