package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	logx "cheerbot/pkg/logx"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Pixabay {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewPixabay(Config{APIKey: "test-key", BaseURL: srv.URL}, logx.Nop())
	if err != nil {
		t.Fatalf("NewPixabay: %v", err)
	}
	return p
}

func TestFetchPicksFromHits(t *testing.T) {
	t.Parallel()
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "motivation" {
			t.Errorf("q = %q, want motivation", got)
		}
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key = %q", got)
		}
		w.Write([]byte(`{"hits":[{"webformatURL":"https://img/a.jpg"},{"webformatURL":"https://img/b.jpg"}]}`))
	})
	p.pick = func(n int) int { return 1 }

	got, err := p.Fetch(context.Background(), "motivation")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != "https://img/b.jpg" {
		t.Fatalf("Fetch = %q", got)
	}
}

func TestFetchNoHitsIsNotAnError(t *testing.T) {
	t.Parallel()
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hits":[]}`))
	})

	got, err := p.Fetch(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != "" {
		t.Fatalf("Fetch = %q, want empty", got)
	}
}

func TestFetchHTTPErrorSurfaces(t *testing.T) {
	t.Parallel()
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := p.Fetch(context.Background(), "motivation"); err == nil {
		t.Fatal("expected error for http 500")
	}
}

func TestNewPixabayRequiresKey(t *testing.T) {
	t.Parallel()
	if _, err := NewPixabay(Config{}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty api key")
	}
}
