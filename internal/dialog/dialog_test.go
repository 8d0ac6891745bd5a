package dialog

import (
	"sync"
	"testing"
	"time"
)

func TestEnterReplacesPriorFlow(t *testing.T) {
	t.Parallel()
	m := NewManager()

	m.Enter(1, FlowAwaitingAddUserID)
	m.Enter(1, FlowAwaitingBroadcastContent)

	if got := m.Take(1); got != FlowAwaitingBroadcastContent {
		t.Fatalf("Take = %v, want %v", got, FlowAwaitingBroadcastContent)
	}
	if got := m.Current(1); got != FlowNone {
		t.Fatalf("flow not cleared after Take: %v", got)
	}
}

func TestTakeClearsEvenWithoutCompletion(t *testing.T) {
	t.Parallel()
	m := NewManager()

	m.Enter(7, FlowAwaitingPassword)
	if got := m.Take(7); got != FlowAwaitingPassword {
		t.Fatalf("Take = %v", got)
	}
	// A second read sees no flow; the handler owning the taken flow may
	// fail, the actor is still unstuck.
	if got := m.Take(7); got != FlowNone {
		t.Fatalf("second Take = %v, want none", got)
	}
}

func TestActorsAreIndependent(t *testing.T) {
	t.Parallel()
	m := NewManager()

	m.Enter(1, FlowAwaitingAddUserID)
	m.Enter(2, FlowAwaitingRemoveUserID)

	if got := m.Current(1); got != FlowAwaitingAddUserID {
		t.Fatalf("actor 1 flow = %v", got)
	}
	if got := m.Current(2); got != FlowAwaitingRemoveUserID {
		t.Fatalf("actor 2 flow = %v", got)
	}
}

func TestClearReportsActivity(t *testing.T) {
	t.Parallel()
	m := NewManager()

	if m.Clear(5) {
		t.Fatal("Clear on idle actor reported activity")
	}
	m.Enter(5, FlowAwaitingBroadcastContent)
	if !m.Clear(5) {
		t.Fatal("Clear on active flow reported no activity")
	}
}

func TestMaxAgeExpiresAbandonedFlows(t *testing.T) {
	t.Parallel()
	now := time.Now()
	m := NewManager(WithMaxAge(time.Minute))
	m.now = func() time.Time { return now }

	m.Enter(9, FlowAwaitingAddUserID)
	now = now.Add(2 * time.Minute)

	if got := m.Current(9); got != FlowNone {
		t.Fatalf("expired flow still visible: %v", got)
	}
}

func TestConcurrentSameActorSingleWinner(t *testing.T) {
	t.Parallel()
	m := NewManager()
	m.Enter(3, FlowAwaitingPassword)

	const workers = 8
	var wg sync.WaitGroup
	taken := make(chan Flow, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f := m.Take(3); f != FlowNone {
				taken <- f
			}
		}()
	}
	wg.Wait()
	close(taken)

	n := 0
	for range taken {
		n++
	}
	if n != 1 {
		t.Fatalf("flow taken %d times, want exactly once", n)
	}
}
