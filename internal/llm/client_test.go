package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/f3rmion/mediscribe/internal/chart"
	"github.com/f3rmion/mediscribe/internal/prompt"
)

// fakeEndpoint fails the first `failures` calls with status, then answers with reply.
type fakeEndpoint struct {
	mu       sync.Mutex
	calls    int
	failures int
	status   int
	reply    string
	bodies   []request
	queries  []string
	paths    []string
}

func (f *fakeEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	raw, _ := io.ReadAll(r.Body)
	var req request
	_ = json.Unmarshal(raw, &req)
	f.bodies = append(f.bodies, req)
	f.queries = append(f.queries, r.URL.RawQuery)
	f.paths = append(f.paths, r.URL.Path)
	f.mu.Unlock()

	if call <= f.failures {
		status := f.status
		if status == 0 {
			status = http.StatusServiceUnavailable
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(f.reply))
}

func (f *fakeEndpoint) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func chartReply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
	return string(b)
}

func newTestClient(t *testing.T, srv *httptest.Server, maxAttempts int, sleeper *recordingSleeper) *Client {
	t.Helper()
	c, err := NewClient(Config{
		APIKey:         "test-key",
		BaseURL:        srv.URL,
		Model:          "test-model",
		MaxAttempts:    maxAttempts,
		InitialBackoff: time.Second,
	}, WithSleeper(sleeper.Sleep))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func testRequest() prompt.Request {
	return prompt.Request{
		Patient:    chart.PatientInfo{Name: "김철수", Age: "40", Gender: chart.GenderMale},
		Transcript: "허리가 아파요",
		Memo:       "SLR (-)",
	}
}

func TestGenerateChartSuccessAfterRetries(t *testing.T) {
	ep := &fakeEndpoint{failures: 3, reply: chartReply("주관적 정보 (S):\nCC: 요통")}
	srv := httptest.NewServer(ep)
	defer srv.Close()

	sleeper := &recordingSleeper{}
	c := newTestClient(t, srv, 4, sleeper)

	got, err := c.GenerateChart(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "주관적 정보 (S):\nCC: 요통" {
		t.Errorf("chart = %q", got)
	}
	if ep.callCount() != 4 {
		t.Errorf("expected 4 calls, got %d", ep.callCount())
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(sleeper.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", sleeper.delays, want)
	}
	for i := range want {
		if sleeper.delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, sleeper.delays[i], want[i])
		}
		if i > 0 && sleeper.delays[i] <= sleeper.delays[i-1] {
			t.Errorf("delays must strictly increase: %v", sleeper.delays)
		}
	}
}

func TestGenerateChartExhaustsRetries(t *testing.T) {
	ep := &fakeEndpoint{failures: 100, status: http.StatusInternalServerError}
	srv := httptest.NewServer(ep)
	defer srv.Close()

	sleeper := &recordingSleeper{}
	c := newTestClient(t, srv, 5, sleeper)

	_, err := c.GenerateChart(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected failure")
	}
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("expected ErrRequestFailed, got %v", err)
	}
	if errors.Is(err, ErrMalformedResponse) {
		t.Errorf("request failure must not match ErrMalformedResponse")
	}

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected *GenerationError, got %T", err)
	}
	if genErr.Attempts != 5 {
		t.Errorf("attempts = %d, want 5", genErr.Attempts)
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected wrapped 500 status error, got %v", err)
	}
	if ep.callCount() != 5 {
		t.Errorf("expected 5 calls, got %d", ep.callCount())
	}
	if len(sleeper.delays) != 4 {
		t.Errorf("expected 4 sleeps between 5 attempts, got %v", sleeper.delays)
	}
}

func TestGenerateChartMalformedIsTerminal(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"no candidates", `{"candidates":[]}`},
		{"no parts", `{"candidates":[{"content":{"parts":[]}}]}`},
		{"empty text", chartReply("   ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := &fakeEndpoint{reply: tt.reply}
			srv := httptest.NewServer(ep)
			defer srv.Close()

			sleeper := &recordingSleeper{}
			c := newTestClient(t, srv, 5, sleeper)

			_, err := c.GenerateChart(context.Background(), testRequest())
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", err)
			}
			if ep.callCount() != 1 {
				t.Errorf("malformed response must not be retried, got %d calls", ep.callCount())
			}
			if len(sleeper.delays) != 0 {
				t.Errorf("unexpected sleeps: %v", sleeper.delays)
			}
		})
	}
}

func TestGenerateChartRequestShape(t *testing.T) {
	ep := &fakeEndpoint{reply: chartReply("ok")}
	srv := httptest.NewServer(ep)
	defer srv.Close()

	c := newTestClient(t, srv, 1, &recordingSleeper{})
	if _, err := c.GenerateChart(context.Background(), testRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ep.paths[0] != "/models/test-model:generateContent" {
		t.Errorf("path = %q", ep.paths[0])
	}
	if ep.queries[0] != "key=test-key" {
		t.Errorf("query = %q", ep.queries[0])
	}

	body := ep.bodies[0]
	if len(body.Contents) != 1 || len(body.Contents[0].Parts) != 1 {
		t.Fatalf("unexpected contents: %+v", body.Contents)
	}
	user := body.Contents[0].Parts[0].Text
	for _, want := range []string{"김철수", "40", "남성", "허리가 아파요", "SLR (-)"} {
		if !strings.Contains(user, want) {
			t.Errorf("user content missing %q", want)
		}
	}
	if len(body.SystemInstruction.Parts) != 1 || !strings.Contains(body.SystemInstruction.Parts[0].Text, "SOAP") {
		t.Errorf("system instruction not sent: %+v", body.SystemInstruction)
	}
}

func TestGenerateChartAttemptTimeout(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	sleeper := &recordingSleeper{}
	c, err := NewClient(Config{
		APIKey:         "k",
		BaseURL:        srv.URL,
		MaxAttempts:    2,
		AttemptTimeout: 20 * time.Millisecond,
	}, WithSleeper(sleeper.Sleep))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = c.GenerateChart(context.Background(), testRequest())
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded cause, got %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
}

func TestGenerateChartContextCanceledStopsRetrying(t *testing.T) {
	ep := &fakeEndpoint{failures: 100}
	srv := httptest.NewServer(ep)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL, MaxAttempts: 5},
		WithSleeper(func(context.Context, time.Duration) error {
			cancel()
			return context.Canceled
		}))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = c.GenerateChart(ctx, testRequest())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ep.callCount() != 1 {
		t.Errorf("expected a single attempt, got %d", ep.callCount())
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{APIKey: "  "}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	c, err := NewClient(Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Model() != DefaultModel {
		t.Errorf("model = %q", c.Model())
	}
	if c.retry.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("max attempts = %d", c.retry.MaxAttempts)
	}
}
