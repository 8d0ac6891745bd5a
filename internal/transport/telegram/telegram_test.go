package telegram

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	rtsup "cheerbot/internal/runtime/supervisor"
	kit "cheerbot/internal/transport"
	logx "cheerbot/pkg/logx"
)

func newTestAdapter(ctx context.Context, out chan<- kit.Update) *Adapter {
	a := &Adapter{log: logx.Nop()}
	a.out.Store(out)
	a.sup = rtsup.New(ctx)
	return a
}

func TestSendUpdateWaitsForSlowConsumer(t *testing.T) {
	t.Parallel()
	ch := make(chan kit.Update) // consumer attaches late
	a := newTestAdapter(context.Background(), ch)

	delivered := make(chan struct{})
	go func() {
		a.sendUpdate(kit.Update{Kind: kit.UpdateMessage})
		close(delivered)
	}()

	select {
	case <-delivered:
		t.Fatal("update was handed off without a consumer")
	case <-time.After(30 * time.Millisecond):
	}

	if up := <-ch; up.Kind != kit.UpdateMessage {
		t.Fatalf("unexpected update kind %q", up.Kind)
	}
	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("hand-off did not complete after the consumer caught up")
	}
	if n := atomic.LoadUint64(&a.droppedUpdates); n != 0 {
		t.Fatalf("droppedUpdates = %d, want 0", n)
	}
}

func TestSendUpdateAbandonsOnShutdown(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan kit.Update) // nobody ever reads
	a := newTestAdapter(ctx, ch)

	done := make(chan struct{})
	go func() {
		a.sendUpdate(kit.Update{Kind: kit.UpdateMessage})
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hand-off did not abandon on shutdown")
	}
	if n := atomic.LoadUint64(&a.droppedUpdates); n != 1 {
		t.Fatalf("droppedUpdates = %d, want 1", n)
	}
}

func TestSplitTextPrefersNewlineBoundaries(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		in     string
		limit  int
		chunks int
	}{
		{name: "short stays whole", in: "hello", limit: 10, chunks: 1},
		{name: "exact limit stays whole", in: "0123456789", limit: 10, chunks: 1},
		{name: "long splits", in: "aaaa\nbbbb\ncccc", limit: 10, chunks: 2},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := splitText(tt.in, tt.limit)
			if len(got) != tt.chunks {
				t.Fatalf("splitText chunks = %d, want %d (%q)", len(got), tt.chunks, got)
			}
			for _, c := range got {
				if len([]rune(c)) > tt.limit {
					t.Fatalf("chunk %q exceeds limit %d", c, tt.limit)
				}
			}
		})
	}
}
