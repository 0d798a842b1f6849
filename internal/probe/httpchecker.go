package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pulsemon/internal/domain"
)

// HTTPChecker issues the target's configured method/headers/body and asserts
// the response against its expected-status set and optional body text.
type HTTPChecker struct {
	Client *http.Client
}

func NewHTTPChecker() *HTTPChecker {
	// No client-level timeout: the per-probe deadline comes from ctx so a
	// per-target override can differ from the global setting.
	return &HTTPChecker{Client: &http.Client{}}
}

func (h *HTTPChecker) Check(ctx context.Context, target domain.Target, timeout time.Duration) Outcome {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if target.Body != "" {
		body = strings.NewReader(target.Body)
	}
	req, err := http.NewRequestWithContext(cctx, target.Method, target.URL, body)
	if err != nil {
		return Outcome{
			Status:  domain.StatusFailure,
			Message: fmt.Sprintf("%v: %v", domain.ErrConfiguration, err),
		}
	}
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := h.Client.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded) {
			// Timeout aborts report the configured budget, not the
			// wall time observed, so results stay comparable. Parent
			// cancellation is not a timeout and falls through below.
			return Outcome{
				Status:         domain.StatusTimeout,
				ResponseTimeMS: timeout.Milliseconds(),
				Message:        fmt.Sprintf("%v after %s", domain.ErrTimeout, timeout),
			}
		}
		return Outcome{
			Status:         domain.StatusFailure,
			ResponseTimeMS: elapsed,
			Message:        fmt.Sprintf("%v: %v", domain.ErrNetworkFailure, err),
		}
	}
	defer resp.Body.Close()

	snippet, size := readSnippet(resp.Body)

	out := Outcome{
		ResponseTimeMS: elapsed,
		StatusCode:     resp.StatusCode,
		Text:           snippet,
		Size:           size,
	}

	if !target.ExpectsStatus(resp.StatusCode) {
		out.Status = domain.StatusFailure
		out.Message = fmt.Sprintf("%v: unexpected status code %d (want one of %v)",
			domain.ErrAssertion, resp.StatusCode, target.ExpectedStatus)
		return out
	}
	if target.ExpectedText != "" && !strings.Contains(snippet, target.ExpectedText) {
		out.Status = domain.StatusFailure
		out.Message = fmt.Sprintf("%v: response body does not contain %q",
			domain.ErrAssertion, target.ExpectedText)
		return out
	}

	out.Status = domain.StatusSuccess
	return out
}

// readSnippet reads at most MaxResponseText bytes for the stored snippet and
// drains the rest to count the full body size.
func readSnippet(r io.Reader) (string, int64) {
	buf := make([]byte, domain.MaxResponseText)
	n, _ := io.ReadFull(r, buf)
	rest, _ := io.Copy(io.Discard, r)
	return string(buf[:n]), int64(n) + rest
}
