package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/timelinkhq/tlcore/pkg/circuit"
)

// RemoteVerifier calls the external content-analysis service over HTTP. The
// call is wrapped in a circuit breaker; while the circuit is open or the
// service errors, the verdict falls back to the heuristic verifier so
// submissions degrade to the pending queue instead of failing.
type RemoteVerifier struct {
	endpoint string
	client   *http.Client
	breaker  *circuit.Breaker
	fallback Verifier
	log      *logrus.Entry
}

func NewRemoteVerifier(endpoint string, fallback Verifier, log *logrus.Entry) *RemoteVerifier {
	return &RemoteVerifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
		breaker: circuit.NewBreaker(circuit.Config{
			Name:        "verifier",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			HalfOpenMax: 2,
		}),
		fallback: fallback,
		log:      log,
	}
}

func (v *RemoteVerifier) Verify(ctx context.Context, sub Submission) (*Result, error) {
	var result *Result
	err := v.breaker.Execute(ctx, func() error {
		r, callErr := v.call(ctx, sub)
		if callErr != nil {
			return callErr
		}
		result = r
		return nil
	})
	if err != nil {
		v.log.WithError(err).Warn("remote verifier unavailable, using heuristic fallback")
		return v.fallback.Verify(ctx, sub)
	}
	return result, nil
}

func (v *RemoteVerifier) call(ctx context.Context, sub Submission) (*Result, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verifier call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verifier returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode verdict: %w", err)
	}
	return &result, nil
}
