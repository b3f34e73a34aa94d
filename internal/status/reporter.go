package status

import (
	"log"
	"sync"
	"time"
)

// Registrar is the HTTP side channel the reporter talks to. Both calls are
// idempotent upserts keyed on terminal ID server-side.
type Registrar interface {
	RegisterTerminal(snap Snapshot) error
	PatchStatus(terminalID string, snap Snapshot) error
}

// Sender is the socket-level liveness ping, satisfied by conn.Manager. A
// false return means the terminal is offline; the reporter ignores it.
type Sender interface {
	UpdateStatus(active bool) bool
}

// Options configures a Reporter.
type Options struct {
	TerminalID string
	Facts      Facts
	Interval   time.Duration
	// Online reports current reachability; nil means always online. Wiring
	// it to the connection manager's state is the usual choice.
	Online func() bool
	// Sender, when set, mirrors each heartbeat as a terminal_status_update
	// on the socket.
	Sender Sender
}

// Reporter registers the terminal once, then re-sends a fresh status
// snapshot on a fixed interval and immediately around foreground,
// background, and shutdown. Every failed send is advisory: logged and
// swallowed, never escalated.
type Reporter struct {
	registrar Registrar
	opts      Options

	mu   sync.Mutex
	stop chan struct{}
}

func NewReporter(registrar Registrar, opts Options) *Reporter {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	return &Reporter{registrar: registrar, opts: opts}
}

// Start registers the terminal and begins the heartbeat loop. Calling Start
// on a running reporter is a no-op, so restarts never stack tickers.
func (r *Reporter) Start() {
	r.mu.Lock()
	if r.stop != nil {
		r.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	r.stop = stop
	r.mu.Unlock()

	if err := r.registrar.RegisterTerminal(r.snapshot(r.online())); err != nil {
		log.Printf("status: register: %v", err)
	}

	go r.loop(stop)
}

// Stop halts the heartbeat loop and sends a final best-effort offline
// update. A stopped reporter can be started again cleanly.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stop == nil {
		r.mu.Unlock()
		return
	}
	close(r.stop)
	r.stop = nil
	r.mu.Unlock()

	r.report(false)
}

// Foreground sends an immediate online update, for when the operator brings
// the terminal back into view.
func (r *Reporter) Foreground() {
	r.report(true)
}

// Background sends an immediate offline update, for when the terminal is
// hidden or the host is tearing down.
func (r *Reporter) Background() {
	r.report(false)
}

func (r *Reporter) loop(stop chan struct{}) {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.report(r.online())
		}
	}
}

func (r *Reporter) report(online bool) {
	snap := r.snapshot(online)
	if err := r.registrar.PatchStatus(r.opts.TerminalID, snap); err != nil {
		log.Printf("status: patch: %v", err)
	}
	if r.opts.Sender != nil {
		r.opts.Sender.UpdateStatus(online)
	}
}

func (r *Reporter) snapshot(online bool) Snapshot {
	return BuildSnapshot(r.opts.TerminalID, r.opts.Facts, online)
}

func (r *Reporter) online() bool {
	if r.opts.Online == nil {
		return true
	}
	return r.opts.Online()
}
