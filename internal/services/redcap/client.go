package redcap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services"
)

// HTTPDoer describes the HTTP client used by the registry client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a registry client.
type Options struct {
	APIURL            string
	Token             string
	RequestsPerSecond float64
	BreakerFailures   uint32
	BreakerTimeout    time.Duration
	HTTPClient        HTTPDoer
}

// Client queries the clinical registry over its REST export API.
type Client struct {
	apiURL  string
	token   string
	http    HTTPDoer
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewClient constructs a registry client. Zero option values fall back to
// conservative defaults.
func NewClient(opts Options) (*Client, error) {
	apiURL := strings.TrimSpace(opts.APIURL)
	if apiURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "redcap", "new client", "api url is required", nil)
	}
	if strings.TrimSpace(opts.Token) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "redcap", "new client", "api token is required", nil)
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	timeout := opts.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "redcap",
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
	})

	return &Client{
		apiURL:  apiURL,
		token:   strings.TrimSpace(opts.Token),
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		breaker: breaker,
	}, nil
}

// RecordsByBiopsyID exports every registry record whose biopsyid matches id.
// An empty result set is returned as an empty slice, not an error; transport
// and API failures carry the registry-unavailable marker.
func (c *Client) RecordsByBiopsyID(ctx context.Context, biopsyID string) ([]Record, error) {
	filter := fmt.Sprintf("[%s]='%s'", FieldBiopsyID, biopsyID)
	return c.export(ctx, filter)
}

func (c *Client) export(ctx context.Context, filterLogic string) ([]Record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, services.Wrap(services.ErrRegistryUnavailable, "redcap", "rate limit", "wait interrupted", err)
	}

	body, err := c.breaker.Execute(func() (any, error) {
		return c.postExport(ctx, filterLogic)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, services.Wrap(services.ErrRegistryUnavailable, "redcap", "export records", "circuit breaker open", err)
		}
		return nil, err
	}

	raw, ok := body.([]byte)
	if !ok {
		return nil, services.Wrap(services.ErrRegistryUnavailable, "redcap", "export records", "unexpected response payload", nil)
	}
	return decodeRecords(raw)
}

func (c *Client) postExport(ctx context.Context, filterLogic string) ([]byte, error) {
	form := url.Values{}
	form.Set("token", c.token)
	form.Set("content", "record")
	form.Set("action", "export")
	form.Set("format", "json")
	form.Set("type", "flat")
	form.Set("rawOrLabel", "raw")
	form.Set("rawOrLabelHeaders", "raw")
	form.Set("returnFormat", "json")
	form.Set("filterLogic", filterLogic)
	for i, field := range DefaultFieldList() {
		form.Set(fmt.Sprintf("fields[%d]", i), field)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, services.Wrap(services.ErrRegistryUnavailable, "redcap", "export records", "build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrRegistryUnavailable, "redcap", "export records", "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrRegistryUnavailable, "redcap", "export records", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrRegistryUnavailable, "redcap", "export records",
			fmt.Sprintf("registry returned %d", resp.StatusCode), nil)
	}
	return payload, nil
}

func decodeRecords(payload []byte) ([]Record, error) {
	var rows []map[string]any
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, services.Wrap(services.ErrRegistryUnavailable, "redcap", "export records", "decode response", err)
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := make(Record, len(row))
		for key, value := range row {
			rec[key] = stringifyValue(value)
		}
		records = append(records, rec)
	}
	return records, nil
}

func stringifyValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
