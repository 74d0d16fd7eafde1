// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/undersounds/stats-service/internal/config"
)

func testCatalogConfig(baseURL string) *config.CatalogConfig {
	return &config.CatalogConfig{
		BaseURL:       baseURL,
		Timeout:       500 * time.Millisecond,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
		Breaker: config.BreakerConfig{
			FailureRatio: 0.5,
			MinRequests:  5,
			Interval:     time.Minute,
			Cooldown:     50 * time.Millisecond,
			HalfOpenMax:  1,
		},
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, mutate func(*config.CatalogConfig)) (*Client, *Registry) {
	t.Helper()
	cfg := testCatalogConfig(srv.URL)
	if mutate != nil {
		mutate(cfg)
	}
	reg := NewRegistry(cfg.Breaker)
	return NewClient(cfg, reg), reg
}

func TestGetEntitySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/artists/a1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"_id":"a1","name":"Nirvana","genre":"grunge"}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv, nil)
	got, err := client.GetEntity(context.Background(), "artist", "a1")
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if got.ID != "a1" || got.Title != "Nirvana" || got.Genre != "grunge" {
		t.Errorf("unexpected entity %+v", got)
	}
}

func TestListByGenreBuildsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/albums" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("genre"); got != "grunge" {
			t.Errorf("genre = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "10" {
			t.Errorf("limit = %q", got)
		}
		_, _ = w.Write([]byte(`[{"_id":"al1","title":"Nevermind"}]`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv, nil)
	got, err := client.ListByGenre(context.Background(), "album", "grunge", 10)
	if err != nil {
		t.Fatalf("ListByGenre: %v", err)
	}
	if len(got) != 1 || got[0].ID != "al1" {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestNotFoundIsNotRetriedAndKeepsBreakerClosed(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client, reg := newTestClient(t, srv, nil)
	for i := 0; i < 6; i++ {
		if _, err := client.GetEntity(context.Background(), "album", "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("call %d: got %v, want ErrNotFound", i, err)
		}
	}
	// One attempt per logical call: definitive answers are not retried.
	if got := calls.Load(); got != 6 {
		t.Errorf("server saw %d calls, want 6", got)
	}
	// Six 404s exceed the min volume, but they are breaker successes.
	if state := reg.State(TargetCatalog); state != gobreaker.StateClosed {
		t.Errorf("breaker state = %v, want closed", state)
	}
}

func TestServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv, nil)
	_, err := client.GetEntity(context.Background(), "album", "al1")

	var srvErr *ServerError
	if !errors.As(err, &srvErr) || srvErr.Status != http.StatusBadGateway {
		t.Fatalf("got %v, want ServerError 502", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d calls, want 1 (5xx must not be retried)", got)
	}
}

func TestTransientFailureRetriedOnlyFinalOutcomeCounts(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		if n <= 2 {
			// Drop the connection so the client sees a transport error.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("test server does not support hijacking")
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Fatalf("hijack: %v", err)
			}
			_ = conn.Close()
			return
		}
		_, _ = w.Write([]byte(`{"_id":"a1","name":"Nirvana"}`))
	}))
	defer srv.Close()

	client, reg := newTestClient(t, srv, nil)
	got, err := client.GetEntity(context.Background(), "artist", "a1")
	if err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if got.Title != "Nirvana" {
		t.Errorf("unexpected entity %+v", got)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("server saw %d attempts, want 3", n)
	}
	// Two failed attempts inside one logical call: the breaker must have
	// recorded a single success and nothing else.
	if state := reg.State(TargetCatalog); state != gobreaker.StateClosed {
		t.Errorf("breaker state = %v, want closed", state)
	}
}

func TestTimeoutClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv, func(cfg *config.CatalogConfig) {
		cfg.Timeout = 30 * time.Millisecond
		cfg.RetryAttempts = 1
	})
	if _, err := client.GetEntity(context.Background(), "artist", "a1"); !errors.Is(err, ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}

func TestBreakerOpensAndRejectsWithoutNetwork(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 4 {
			_, _ = w.Write([]byte(`{"_id":"a1","name":"x"}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	// Ratio 0.6 with min volume 5: four successes then six 5xx failures
	// crosses the threshold exactly on the tenth call.
	client, reg := newTestClient(t, srv, func(cfg *config.CatalogConfig) {
		cfg.Breaker.FailureRatio = 0.6
	})

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if _, err := client.GetEntity(ctx, "artist", "a1"); err != nil {
			t.Fatalf("warmup call %d: %v", i, err)
		}
	}
	for i := 0; i < 6; i++ {
		var srvErr *ServerError
		if _, err := client.GetEntity(ctx, "artist", "a1"); !errors.As(err, &srvErr) {
			t.Fatalf("failure call %d: got %v, want ServerError", i, err)
		}
	}
	if state := reg.State(TargetCatalog); state != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", state)
	}

	before := calls.Load()
	start := time.Now()
	_, err := client.GetEntity(ctx, "artist", "a1")
	elapsed := time.Since(start)

	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("got %v, want ErrCircuitOpen", err)
	}
	if calls.Load() != before {
		t.Error("open circuit must not attempt network I/O")
	}
	if elapsed > time.Millisecond {
		t.Errorf("open-circuit rejection took %v, want under 1ms", elapsed)
	}
}

func TestHalfOpenTrialFailureReopens(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"_id":"a1","name":"x"}`))
	}))
	defer srv.Close()

	client, reg := newTestClient(t, srv, nil)
	ctx := context.Background()

	// Trip the breaker: five consecutive 5xx at min volume 5, ratio 0.5.
	for i := 0; i < 5; i++ {
		_, _ = client.GetEntity(ctx, "artist", "a1")
	}
	if state := reg.State(TargetCatalog); state != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", state)
	}

	// After the cool-down a single trial call is admitted; its failure
	// reopens the circuit immediately.
	time.Sleep(70 * time.Millisecond)
	before := calls.Load()
	_, _ = client.GetEntity(ctx, "artist", "a1")
	if calls.Load() != before+1 {
		t.Fatal("expected exactly one trial call through the half-open gate")
	}
	if state := reg.State(TargetCatalog); state != gobreaker.StateOpen {
		t.Fatalf("breaker state after failed trial = %v, want open", state)
	}

	// Cool-down restarts; the next call inside it is rejected unseen.
	before = calls.Load()
	if _, err := client.GetEntity(ctx, "artist", "a1"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("got %v, want ErrCircuitOpen", err)
	}
	if calls.Load() != before {
		t.Error("re-opened circuit must not attempt network I/O")
	}

	// Recovery: after another cool-down a successful trial closes it.
	failing.Store(false)
	time.Sleep(70 * time.Millisecond)
	if _, err := client.GetEntity(ctx, "artist", "a1"); err != nil {
		t.Fatalf("trial call after recovery: %v", err)
	}
	if state := reg.State(TargetCatalog); state != gobreaker.StateClosed {
		t.Errorf("breaker state after successful trial = %v, want closed", state)
	}
}

func TestCancelledContextPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := client.GetEntity(ctx, "artist", "a1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
