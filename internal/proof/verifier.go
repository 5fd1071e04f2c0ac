// Package proof submits off-chain claim proofs to the verification service and
// records the outcome. Proofs are linked to payouts by the processor; they never
// change bounty or worker aggregates.
package proof

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goran-ethernal/BountyIndexor/internal/logger"
	"github.com/goran-ethernal/BountyIndexor/pkg/config"
	"github.com/hashicorp/go-retryablehttp"
)

const maxResponseSize = 1 << 20

// Result is the outcome of a verification.
type Result struct {
	Verified bool
	// ClaimData is the JSON document returned by the verifier.
	ClaimData json.RawMessage
}

// Verifier checks a claim URL, e.g. a pull request, against the proving service.
type Verifier interface {
	Verify(ctx context.Context, claimURL string, headers []string) (Result, error)
}

type verifyRequest struct {
	URL     string   `json:"url"`
	Headers []string `json:"headers,omitempty"`
}

// HTTPVerifier posts claims to a remote verification endpoint.
type HTTPVerifier struct {
	url          string
	clientID     string
	clientSecret string
	client       *retryablehttp.Client
	log          *logger.Logger
}

var _ Verifier = (*HTTPVerifier)(nil)

// NewHTTPVerifier creates a verifier for the configured endpoint.
func NewHTTPVerifier(cfg config.ProofVerifierConfig, log *logger.Logger) *HTTPVerifier {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.RetryWaitMin = 200 * time.Millisecond //nolint:mnd
	client.RetryWaitMax = 5 * time.Second        //nolint:mnd
	client.HTTPClient.Timeout = cfg.Timeout.Duration
	client.Logger = nil
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &HTTPVerifier{
		url:          cfg.URL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		client:       client,
		log:          log,
	}
}

// Verify submits the claim. A 2xx answer is a verified claim whose body becomes the
// claim data, a 4xx answer is a rejected claim and anything else is an error.
func (v *HTTPVerifier) Verify(ctx context.Context, claimURL string, headers []string) (Result, error) {
	body, err := json.Marshal(verifyRequest{URL: claimURL, Headers: headers})
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode verify request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, v.url, body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-client-id", v.clientID)
	if v.clientSecret != "" {
		req.Header.Set("Authorization", "Bearer "+v.clientSecret)
	}

	start := time.Now()
	resp, err := v.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("verify request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read verify response: %w", err)
	}

	v.log.Debugf("verify %s: status=%d, took=%s", claimURL, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Result{Verified: true, ClaimData: claimData(data)}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return Result{Verified: false, ClaimData: claimData(data)}, nil
	default:
		return Result{}, &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
}

// StatusError is returned when the verifier answers with an unexpected status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("verifier returned status %d: %s", e.Code, e.Body)
}


// claimData keeps JSON bodies as they are and wraps anything else into a JSON object.
func claimData(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return json.RawMessage("{}")
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}

	wrapped, _ := json.Marshal(map[string]string{"raw": string(trimmed)})
	return wrapped
}
