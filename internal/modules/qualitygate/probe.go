package qualitygate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/yungbote/stackmemory-backend/internal/modules/roadmap"
	"github.com/yungbote/stackmemory-backend/internal/observability"
)

const DefaultProbeTimeout = 10 * time.Second

// ProbeResult is the outcome of one accessibility check.
type ProbeResult struct {
	Accessible     bool   `json:"accessible" yaml:"accessible"`
	StatusCode     int    `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	RedirectURL    string `json:"redirectUrl,omitempty" yaml:"redirectUrl,omitempty"`
	Error          string `json:"error,omitempty" yaml:"error,omitempty"`
	ResponseTimeMS int64  `json:"responseTime" yaml:"responseTime"`
}

// Prober checks whether a material url is reachable. Implementations never
// return an error: failures are reported inside the result.
type Prober interface {
	Probe(ctx context.Context, url string) ProbeResult
}

type HTTPProber struct {
	client  *http.Client
	timeout time.Duration
}

func NewHTTPProber(timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &HTTPProber{
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: timeout,
	}
}

func (p *HTTPProber) Probe(ctx context.Context, url string) ProbeResult {
	start := time.Now()
	res := p.probe(ctx, url)
	res.ResponseTimeMS = time.Since(start).Milliseconds()

	outcome := "accessible"
	switch {
	case res.Accessible:
	case res.StatusCode != 0:
		outcome = "http_error"
	case res.Error == p.timeoutMessage():
		outcome = "timeout"
	default:
		outcome = "network_error"
	}
	observability.RecordProbe(outcome, time.Since(start))
	return res
}

func (p *HTTPProber) probe(ctx context.Context, url string) ProbeResult {
	if roadmap.IsGeneratedURL(url) {
		return ProbeResult{Accessible: true}
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return ProbeResult{Error: err.Error()}
	}
	req.Header.Set("User-Agent", "StackMemory/1.0 (Educational Tool)")
	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
			return ProbeResult{Error: p.timeoutMessage()}
		}
		return ProbeResult{Error: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return ProbeResult{Accessible: true, StatusCode: resp.StatusCode, RedirectURL: resp.Header.Get("Location")}
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return ProbeResult{Accessible: true, StatusCode: resp.StatusCode}
	default:
		return ProbeResult{StatusCode: resp.StatusCode, Error: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
}

func (p *HTTPProber) timeoutMessage() string {
	return fmt.Sprintf("请求超时 (%s)", p.timeout)
}
