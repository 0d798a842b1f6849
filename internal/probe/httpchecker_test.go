package probe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pulsemon/internal/domain"
)

func httpTarget(url string) domain.Target {
	t := domain.Target{ID: "T1", URL: url, Protocol: domain.ProtocolHTTP}
	t.ApplyDefaults()
	return t
}

func TestHTTPChecker_ExpectedStatus(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer s.Close()

	chk := NewHTTPChecker()
	out := chk.Check(context.Background(), httpTarget(s.URL), 2*time.Second)
	if out.Status != domain.StatusSuccess {
		t.Fatalf("want success, got %+v", out)
	}
	if out.StatusCode != 200 {
		t.Fatalf("want status 200, got %d", out.StatusCode)
	}
	if out.ResponseTimeMS < 0 {
		t.Fatalf("response time should be >= 0, got %d", out.ResponseTimeMS)
	}
}

func TestHTTPChecker_UnexpectedStatusFails(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", 404)
	}))
	defer s.Close()

	tgt := httpTarget(s.URL)
	tgt.ExpectedStatus = []int{200}

	chk := NewHTTPChecker()
	out := chk.Check(context.Background(), tgt, 2*time.Second)
	if out.Status != domain.StatusFailure {
		t.Fatalf("want failure, got %+v", out)
	}
	if !strings.Contains(out.Message, "404") {
		t.Fatalf("message should cite the status code, got %q", out.Message)
	}
}

func TestHTTPChecker_ExpectedTextMissing(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("service degraded"))
	}))
	defer s.Close()

	tgt := httpTarget(s.URL)
	tgt.ExpectedText = "healthy"

	chk := NewHTTPChecker()
	out := chk.Check(context.Background(), tgt, 2*time.Second)
	if out.Status != domain.StatusFailure {
		t.Fatalf("want failure on missing text, got %+v", out)
	}
	if !strings.Contains(out.Message, "healthy") {
		t.Fatalf("message should name the expected text, got %q", out.Message)
	}
}

func TestHTTPChecker_TimeoutReportsBudget(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(200)
	}))
	defer s.Close()

	chk := NewHTTPChecker()
	timeout := 50 * time.Millisecond
	out := chk.Check(context.Background(), httpTarget(s.URL), timeout)
	if out.Status != domain.StatusTimeout {
		t.Fatalf("want timeout, got %+v", out)
	}
	if out.ResponseTimeMS != timeout.Milliseconds() {
		t.Fatalf("want response time = budget %dms, got %d", timeout.Milliseconds(), out.ResponseTimeMS)
	}
}

func TestHTTPChecker_CanceledContextIsNotTimeout(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(200)
	}))
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	chk := NewHTTPChecker()
	timeout := 5 * time.Second
	out := chk.Check(ctx, httpTarget(s.URL), timeout)
	if out.Status != domain.StatusFailure {
		t.Fatalf("canceled probe must be a failure, got %+v", out)
	}
	if out.ResponseTimeMS >= timeout.Milliseconds() {
		t.Fatalf("canceled probe must not report the full budget, got %dms", out.ResponseTimeMS)
	}
	if !strings.Contains(out.Message, "canceled") {
		t.Fatalf("message should carry the cancellation, got %q", out.Message)
	}
}

func TestHTTPChecker_NetworkFailure(t *testing.T) {
	chk := NewHTTPChecker()
	out := chk.Check(context.Background(), httpTarget("http://127.0.0.1:1"), 2*time.Second)
	if out.Status != domain.StatusFailure {
		t.Fatalf("want failure, got %+v", out)
	}
	if out.Message == "" {
		t.Fatalf("want non-empty error message")
	}
}

func TestHTTPChecker_MethodHeadersBody(t *testing.T) {
	var gotMethod, gotHeader, gotBody string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Probe")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(201)
	}))
	defer s.Close()

	tgt := httpTarget(s.URL)
	tgt.Method = "POST"
	tgt.Headers = map[string]string{"X-Probe": "pulsemon"}
	tgt.Body = `{"ping":true}`

	chk := NewHTTPChecker()
	out := chk.Check(context.Background(), tgt, 2*time.Second)
	if out.Status != domain.StatusSuccess {
		t.Fatalf("want success, got %+v", out)
	}
	if gotMethod != "POST" || gotHeader != "pulsemon" || gotBody != `{"ping":true}` {
		t.Fatalf("request not as configured: method=%q header=%q body=%q", gotMethod, gotHeader, gotBody)
	}
}

func TestHTTPChecker_SnippetBounded(t *testing.T) {
	big := strings.Repeat("x", 5000)
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(big))
	}))
	defer s.Close()

	chk := NewHTTPChecker()
	out := chk.Check(context.Background(), httpTarget(s.URL), 2*time.Second)
	if len(out.Text) != domain.MaxResponseText {
		t.Fatalf("want snippet capped at %d bytes, got %d", domain.MaxResponseText, len(out.Text))
	}
	if out.Size != int64(len(big)) {
		t.Fatalf("want full size %d, got %d", len(big), out.Size)
	}
}
