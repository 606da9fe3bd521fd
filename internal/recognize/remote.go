package recognize

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/your-org/greeter/internal/config"
	"github.com/your-org/greeter/internal/observability"
)

// MatchResult is the outcome of a remote match attempt. An upstream failure
// is mapped to the zero value (no match, zero confidence) rather than an
// error: identification is best-effort and fails open to "new visitor".
type MatchResult struct {
	Match      bool    `json:"match"`
	VisitorID  int64   `json:"visitorId"`
	Confidence float32 `json:"confidence"`
}

// Matcher checks a descriptor against a reference set.
type Matcher interface {
	Match(ctx context.Context, descriptor []float32) MatchResult
}

// RemoteMatcher calls an external matching service over HTTP with a bounded
// timeout. Every failure mode (unreachable, timeout, non-2xx, bad body)
// degrades to a no-match result.
type RemoteMatcher struct {
	baseURL   string
	apiKey    string
	threshold float64
	client    *http.Client
}

func NewRemoteMatcher(cfg config.MatcherConfig) *RemoteMatcher {
	return &RemoteMatcher{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		threshold: cfg.Threshold,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

type matchRequest struct {
	Descriptor []float32 `json:"descriptor"`
	Threshold  float64   `json:"threshold"`
}

func (m *RemoteMatcher) Match(ctx context.Context, descriptor []float32) MatchResult {
	if m.baseURL == "" {
		return MatchResult{}
	}

	start := time.Now()
	defer func() {
		observability.MatcherDuration.Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(matchRequest{Descriptor: descriptor, Threshold: m.threshold})
	if err != nil {
		return m.unavailable("marshal match request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/faces/match", bytes.NewReader(payload))
	if err != nil {
		return m.unavailable("build match request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return m.unavailable("call matcher", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("matcher returned non-success status, treating as new visitor", "status", resp.StatusCode)
		observability.MatcherRequests.WithLabelValues("unavailable").Inc()
		return MatchResult{}
	}

	var result MatchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return m.unavailable("decode matcher response", err)
	}

	if result.Match {
		observability.MatcherRequests.WithLabelValues("match").Inc()
	} else {
		observability.MatcherRequests.WithLabelValues("no_match").Inc()
	}
	return result
}

func (m *RemoteMatcher) unavailable(msg string, err error) MatchResult {
	slog.Warn("remote matcher unavailable, treating as new visitor", "stage", msg, "error", err)
	observability.MatcherRequests.WithLabelValues("unavailable").Inc()
	return MatchResult{}
}
