package status

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeRegistrar struct {
	mu        sync.Mutex
	registers []Snapshot
	patches   []Snapshot
	fail      bool
}

func (f *fakeRegistrar) RegisterTerminal(snap Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers = append(f.registers, snap)
	if f.fail {
		return errors.New("server unavailable")
	}
	return nil
}

func (f *fakeRegistrar) PatchStatus(terminalID string, snap Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, snap)
	if f.fail {
		return errors.New("server unavailable")
	}
	return nil
}

func (f *fakeRegistrar) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.registers), len(f.patches)
}

func (f *fakeRegistrar) lastPatch() (Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.patches) == 0 {
		return Snapshot{}, false
	}
	return f.patches[len(f.patches)-1], true
}

type fakeSender struct {
	mu    sync.Mutex
	calls []bool
}

func (f *fakeSender) UpdateStatus(active bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, active)
	return true
}

func newTestReporter(reg *fakeRegistrar, opts Options) *Reporter {
	opts.TerminalID = "POS-TEST"
	if opts.Interval == 0 {
		opts.Interval = 20 * time.Millisecond
	}
	return NewReporter(reg, opts)
}

func waitCondition(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartRegistersOnce(t *testing.T) {
	reg := &fakeRegistrar{}
	r := newTestReporter(reg, Options{})
	defer r.Stop()

	r.Start()
	r.Start() // second Start on a running reporter is a no-op

	registers, _ := reg.counts()
	if registers != 1 {
		t.Errorf("registers = %d, want 1", registers)
	}
}

func TestHeartbeatTicks(t *testing.T) {
	reg := &fakeRegistrar{}
	r := newTestReporter(reg, Options{})
	defer r.Stop()

	r.Start()
	waitCondition(t, "two heartbeat patches", func() bool {
		_, patches := reg.counts()
		return patches >= 2
	})

	snap, _ := reg.lastPatch()
	if !snap.Online {
		t.Error("heartbeat with nil Online hook should report online")
	}
	if snap.TerminalID != "POS-TEST" {
		t.Errorf("patch terminalId = %q, want POS-TEST", snap.TerminalID)
	}
}

func TestOnlineHookDrivesReachability(t *testing.T) {
	reg := &fakeRegistrar{}
	r := newTestReporter(reg, Options{Online: func() bool { return false }})
	defer r.Stop()

	r.Start()
	waitCondition(t, "a heartbeat patch", func() bool {
		_, patches := reg.counts()
		return patches >= 1
	})

	if snap, ok := reg.lastPatch(); !ok || snap.Online {
		t.Error("heartbeat should report offline when the hook says so")
	}
}

func TestForegroundBackgroundImmediate(t *testing.T) {
	reg := &fakeRegistrar{}
	r := newTestReporter(reg, Options{Interval: time.Hour}) // no ticks during test
	r.Start()
	defer r.Stop()

	r.Background()
	if snap, ok := reg.lastPatch(); !ok || snap.Online {
		t.Error("Background() should patch offline immediately")
	}

	r.Foreground()
	if snap, ok := reg.lastPatch(); !ok || !snap.Online {
		t.Error("Foreground() should patch online immediately")
	}
}

func TestStopSendsFinalOfflineAndHalts(t *testing.T) {
	reg := &fakeRegistrar{}
	r := newTestReporter(reg, Options{})
	r.Start()

	r.Stop()
	if snap, ok := reg.lastPatch(); !ok || snap.Online {
		t.Error("Stop() should send a final offline patch")
	}

	// Let any tick already in flight land before sampling.
	time.Sleep(30 * time.Millisecond)
	_, patches := reg.counts()
	time.Sleep(80 * time.Millisecond)
	if _, after := reg.counts(); after != patches {
		t.Errorf("patches kept arriving after Stop(): %d then %d", patches, after)
	}

	r.Stop() // stopping twice is a no-op
}

func TestRestartRegistersAgain(t *testing.T) {
	reg := &fakeRegistrar{}
	r := newTestReporter(reg, Options{})
	r.Start()
	r.Stop()
	r.Start()
	defer r.Stop()

	registers, _ := reg.counts()
	if registers != 2 {
		t.Errorf("registers after restart = %d, want 2", registers)
	}
}

// A failing side channel never stops the reporter; sends are advisory.
func TestSendFailuresAreSwallowed(t *testing.T) {
	reg := &fakeRegistrar{fail: true}
	r := newTestReporter(reg, Options{})
	defer r.Stop()

	r.Start()
	r.Background()
	r.Foreground()

	waitCondition(t, "heartbeats despite failures", func() bool {
		_, patches := reg.counts()
		return patches >= 3
	})
}

func TestSenderMirrorsHeartbeat(t *testing.T) {
	reg := &fakeRegistrar{}
	sender := &fakeSender{}
	r := newTestReporter(reg, Options{Interval: time.Hour, Sender: sender})
	r.Start()
	defer r.Stop()

	r.Background()
	r.Foreground()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.calls) != 2 || sender.calls[0] || !sender.calls[1] {
		t.Errorf("sender calls = %v, want [false true]", sender.calls)
	}
}
