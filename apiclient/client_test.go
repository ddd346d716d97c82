package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/sony/gobreaker/v2"
)

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func testPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		Timeout:       5 * time.Second,
		InitialDelay:  5 * time.Second,
		BackoffFactor: 1.5,
		MaxDelay:      30 * time.Second,
	}
}

func newTestClient(p Policy, rec *sleepRecorder) *Client {
	logger, _ := test.NewNullLogger()
	return New(p, WithSleep(rec.sleep), WithLogger(logger))
}

func TestDelayIsCappedAndMonotonic(t *testing.T) {
	p := DefaultPolicy()
	want := []time.Duration{5 * time.Second, 7500 * time.Millisecond, 11250 * time.Millisecond}
	for n, w := range want {
		if got := p.Delay(n); got != w {
			t.Fatalf("Delay(%d) = %v, want %v", n, got, w)
		}
	}

	prev := time.Duration(0)
	for n := 0; n < 20; n++ {
		d := p.Delay(n)
		if d < prev {
			t.Fatalf("Delay(%d) = %v decreased from %v", n, d, prev)
		}
		if d > p.MaxDelay {
			t.Fatalf("Delay(%d) = %v exceeds max %v", n, d, p.MaxDelay)
		}
		prev = d
	}
	if p.Delay(10) != 30*time.Second {
		t.Fatalf("expected delay to saturate at 30s, got %v", p.Delay(10))
	}
}

func TestDoReturnsImmediatelyOn200(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer header")
		}
		if r.URL.Query().Get("codigo") != "123" {
			t.Errorf("missing query param, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(testPolicy(), rec)
	header := http.Header{"Authorization": []string{"Bearer tok"}}
	resp, err := c.Get(context.Background(), srv.URL+"/x", header, url.Values{"codigo": {"123"}}, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !resp.OK() || resp.ContentType != "application/json" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if calls != 1 || len(rec.waits) != 0 {
		t.Fatalf("expected one call and no waits, got %d calls %v waits", calls, rec.waits)
	}
}

func TestDoRetries500WithBackoff(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(testPolicy(), rec)
	resp, err := c.Get(context.Background(), srv.URL, nil, nil, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !resp.OK() {
		t.Fatalf("expected eventual 200, got %d", resp.StatusCode)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	want := []time.Duration{5 * time.Second, 7500 * time.Millisecond}
	if len(rec.waits) != len(want) || rec.waits[0] != want[0] || rec.waits[1] != want[1] {
		t.Fatalf("unexpected waits %v, want %v", rec.waits, want)
	}
}

func TestDoReturnsLast500AfterExhaustion(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "still broken", http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(testPolicy(), rec)
	resp, err := c.Get(context.Background(), srv.URL, nil, nil, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 surfaced, got %d", resp.StatusCode)
	}
	if calls != 3 || len(rec.waits) != 2 {
		t.Fatalf("expected 3 attempts and 2 waits, got %d and %v", calls, rec.waits)
	}
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized} {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(status)
		}))

		rec := &sleepRecorder{}
		c := newTestClient(testPolicy(), rec)
		resp, err := c.Get(context.Background(), srv.URL, nil, nil, nil)
		srv.Close()
		if err != nil {
			t.Fatalf("status %d: Get() error = %v", status, err)
		}
		if resp.StatusCode != status || calls != 1 || len(rec.waits) != 0 {
			t.Fatalf("status %d: got code %d, %d calls, %v waits", status, resp.StatusCode, calls, rec.waits)
		}
	}
}

func TestSkipLiteralNeverRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"mensagem":"Fatura INDISPONÍVEL no canal digital"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(testPolicy(), rec)
	resp, err := c.Get(context.Background(), srv.URL, nil, nil, []string{"fatura indisponível no canal digital"})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected the 500 to be surfaced, got %d", resp.StatusCode)
	}
	if calls != 1 || len(rec.waits) != 0 {
		t.Fatalf("skip literal must stop retries, got %d calls", calls)
	}
}

func TestConnectionErrorsExhaustAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(testPolicy(), rec)
	resp, err := c.Get(context.Background(), target, nil, nil, nil)
	if resp != nil {
		t.Fatalf("expected nil response, got %+v", resp)
	}
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if len(rec.waits) != 2 {
		t.Fatalf("expected backoff between the 3 attempts, got %v", rec.waits)
	}
}

func TestDefaultPolicyRetriesEveryRequestAgainstDeadHost(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer srv.Close()

	p := DefaultPolicy()
	rec := &sleepRecorder{}
	c := newTestClient(p, rec)

	for i := 0; i < 8; i++ {
		before := atomic.LoadInt32(&calls)
		_, err := c.Get(context.Background(), srv.URL, nil, nil, nil)
		if !errors.Is(err, ErrExhausted) || IsCircuitOpen(err) {
			t.Fatalf("request %d: expected exhausted retries, got %v", i, err)
		}
		if got := atomic.LoadInt32(&calls) - before; got != int32(p.MaxAttempts) {
			t.Fatalf("request %d: %d attempts, want %d", i, got, p.MaxAttempts)
		}
	}
	if len(rec.waits) != 8*(p.MaxAttempts-1) {
		t.Fatalf("expected full backoff schedule on every request, got %d waits", len(rec.waits))
	}
}

func TestBreakerOpensAfterExhaustedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	p := testPolicy()
	p.MaxAttempts = 1
	p.BreakerEnabled = true
	p.BreakerMinRequests = 1
	p.BreakerFailureRatio = 0.5
	p.BreakerOpenTimeout = time.Minute

	c := newTestClient(p, &sleepRecorder{})
	if _, err := c.Get(context.Background(), target, nil, nil, nil); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected first call to exhaust, got %v", err)
	}
	_, err := c.Get(context.Background(), target, nil, nil, nil)
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsCircuitOpen(err) {
		t.Fatalf("expected open breaker, got %v", err)
	}
}

func TestContainsIgnoresCase(t *testing.T) {
	r := &Response{Body: []byte("Documento NÃO encontrado")}
	if !r.Contains("documento não encontrado") {
		t.Fatalf("expected case-insensitive match")
	}
	if r.Contains("", "outro") {
		t.Fatalf("unexpected match")
	}
	var nilResp *Response
	if nilResp.Contains("x") || nilResp.OK() {
		t.Fatalf("nil response must not match")
	}
}
