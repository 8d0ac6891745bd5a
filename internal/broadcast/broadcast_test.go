package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cheerbot/internal/storage"
	kit "cheerbot/internal/transport"
	logx "cheerbot/pkg/logx"
)

type fakeAdapter struct {
	mu       sync.Mutex
	texts    map[int64]string
	photos   map[int64]kit.Photo
	failIDs  map[int64]error
	blockAll bool
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		texts:   map[int64]string{},
		photos:  map[int64]kit.Photo{},
		failIDs: map[int64]error{},
	}
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	if f.blockAll {
		<-ctx.Done()
		return kit.MessageRef{}, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failIDs[to.ChatID]; ok {
		return kit.MessageRef{}, err
	}
	f.texts[to.ChatID] = text
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func (f *fakeAdapter) SendPhoto(ctx context.Context, to kit.ChatTarget, photo kit.Photo, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failIDs[to.ChatID]; ok {
		return kit.MessageRef{}, err
	}
	f.photos[to.ChatID] = photo
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func (f *fakeAdapter) ResolveChat(_ context.Context, id int64) (kit.ChatInfo, error) {
	return kit.ChatInfo{ID: id}, nil
}

func (f *fakeAdapter) AnswerCallback(context.Context, string, string) error { return nil }

func subs(ids ...int64) []storage.Subscriber {
	out := make([]storage.Subscriber, 0, len(ids))
	for _, id := range ids {
		out = append(out, storage.Subscriber{ID: id})
	}
	return out
}

func TestDispatchIsolatesFailures(t *testing.T) {
	t.Parallel()
	fa := newFakeAdapter()
	fa.failIDs[3] = errors.New("blocked by user")
	d := NewDispatcher(Config{Workers: 2, RatePerSec: 1000}, fa, logx.Nop())

	rep := d.Dispatch(context.Background(), Job{Kind: "manual", Text: "hi"}, subs(1, 2, 3, 4, 5))

	if rep.Attempted != 5 || rep.Delivered != 4 {
		t.Fatalf("report = %+v", rep)
	}
	if rep.Failed() != 1 || rep.Failures[0].RecipientID != 3 {
		t.Fatalf("failures = %+v", rep.Failures)
	}
	if rep.Failures[0].Reason != "blocked by user" {
		t.Fatalf("reason = %q", rep.Failures[0].Reason)
	}
	for _, id := range []int64{1, 2, 4, 5} {
		if fa.texts[id] != "hi" {
			t.Fatalf("recipient %d did not receive content", id)
		}
	}
}

func TestDispatchExcludesSender(t *testing.T) {
	t.Parallel()
	fa := newFakeAdapter()
	d := NewDispatcher(Config{RatePerSec: 1000}, fa, logx.Nop())

	rep := d.Dispatch(context.Background(), Job{Kind: "broadcast", Text: "x", ExcludedSender: 2}, subs(1, 2, 3))

	if rep.Attempted != 2 || rep.Delivered != 2 {
		t.Fatalf("report = %+v", rep)
	}
	if _, got := fa.texts[2]; got {
		t.Fatal("excluded sender received the broadcast")
	}
}

func TestDispatchEmptyDirectory(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(Config{}, newFakeAdapter(), logx.Nop())

	rep := d.Dispatch(context.Background(), Job{Kind: "daily", Text: "x"}, nil)

	if rep.Attempted != 0 || rep.Delivered != 0 || rep.Failed() != 0 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestDispatchSendsPhotos(t *testing.T) {
	t.Parallel()
	fa := newFakeAdapter()
	d := NewDispatcher(Config{RatePerSec: 1000}, fa, logx.Nop())

	photo := &kit.Photo{URL: "https://img/a.jpg", Caption: "cheer"}
	rep := d.Dispatch(context.Background(), Job{Kind: "daily", Photo: photo}, subs(1))

	if rep.Delivered != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if got := fa.photos[1]; got.URL != photo.URL || got.Caption != photo.Caption {
		t.Fatalf("photo = %+v", got)
	}
}

func TestDispatchTimesOutSlowRecipient(t *testing.T) {
	t.Parallel()
	fa := newFakeAdapter()
	fa.blockAll = true
	d := NewDispatcher(Config{RatePerSec: 1000, SendTimeout: 20 * time.Millisecond}, fa, logx.Nop())

	done := make(chan Report, 1)
	go func() {
		done <- d.Dispatch(context.Background(), Job{Kind: "manual", Text: "x"}, subs(1))
	}()

	select {
	case rep := <-done:
		if rep.Failed() != 1 {
			t.Fatalf("report = %+v", rep)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch hung on a slow recipient")
	}
}
