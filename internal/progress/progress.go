// Package progress prints periodic heartbeat lines while a long job runs
package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// DefaultInterval is how often a heartbeat is printed
const DefaultInterval = 30 * time.Second

// MessageFunc renders the heartbeat text for the elapsed time and remaining budget.
// remaining is zero when the job has no timeout.
type MessageFunc func(elapsed, remaining time.Duration) string

// Tracker reports that a job is still alive until it is stopped
type Tracker struct {
	operation string
	subject   string
	timeout   time.Duration
	interval  time.Duration
	message   MessageFunc
	out       io.Writer
	color     bool

	mu      sync.Mutex
	start   time.Time
	beats   int
	started bool
	stopped bool
	done    chan struct{}
	exited  chan struct{}
}

// Options configures a tracker
type Options struct {
	Operation string // e.g. "Measurement", "Sample generation"
	Subject   string // task or generator name
	Timeout   time.Duration
	Interval  time.Duration
	Message   MessageFunc
	// Out receives heartbeats (os.Stdout when nil)
	Out   io.Writer
	Color bool
}

// New creates a tracker; it does nothing until Start
func New(opts Options) *Tracker {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Message == nil {
		opts.Message = defaultMessage
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	return &Tracker{
		operation: opts.Operation,
		subject:   opts.Subject,
		timeout:   opts.Timeout,
		interval:  opts.Interval,
		message:   opts.Message,
		out:       opts.Out,
		color:     opts.Color,
		done:      make(chan struct{}),
		exited:    make(chan struct{}),
	}
}

// Start launches the heartbeat loop; it ends on Stop or when ctx is done
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.stopped {
		return
	}
	t.started = true
	t.start = time.Now()

	go t.loop(ctx)
}

// Stop ends the heartbeat loop and waits for it to exit. Safe to call more than once.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.stopped {
		t.stopped = true
		close(t.done)
	}
	started := t.started
	t.mu.Unlock()
	if started {
		<-t.exited
	}
}

// Elapsed returns the time since Start
func (t *Tracker) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Since(t.start)
}

// Beats returns how many heartbeats were printed
func (t *Tracker) Beats() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.beats
}

func (t *Tracker) loop(ctx context.Context) {
	defer close(t.exited)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		case <-ticker.C:
			t.beat()
		}
	}
}

func (t *Tracker) beat() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	elapsed := time.Since(t.start)
	var remaining time.Duration
	if t.timeout > 0 {
		remaining = t.timeout - elapsed
		if remaining <= 0 {
			return
		}
	}

	subject := ""
	if t.subject != "" {
		subject = fmt.Sprintf(" (%s)", t.subject)
	}
	marker := "⏳"
	if t.color {
		marker = color.CyanString(marker)
	}
	_, _ = fmt.Fprintf(t.out, "%s %s%s - %s\n", marker, t.operation, subject, t.message(elapsed, remaining))
	t.beats++
}

func defaultMessage(elapsed, remaining time.Duration) string {
	if remaining <= 0 {
		return fmt.Sprintf("running for %s", clock(elapsed))
	}
	return fmt.Sprintf("running for %s, %s remaining", clock(elapsed), clock(remaining))
}

// MeasurementMessage reminds the reader that a measurement owns the machine
func MeasurementMessage(task string) MessageFunc {
	return func(elapsed, remaining time.Duration) string {
		msg := fmt.Sprintf("measuring %s for %s; other jobs are held until it finishes", task, clock(elapsed))
		if remaining > 0 {
			msg += fmt.Sprintf(" (%s budget left)", clock(remaining))
		}
		return msg
	}
}

// clock renders whole seconds as "1h2m3s" style text
func clock(d time.Duration) string {
	return d.Truncate(time.Second).String()
}

// Group tracks several concurrently running jobs by name
type Group struct {
	mu       sync.Mutex
	trackers map[string]*Tracker
	newOpts  func(name string) Options
}

// NewGroup creates a group; newOpts builds the tracker options for each started name
func NewGroup(newOpts func(name string) Options) *Group {
	return &Group{trackers: make(map[string]*Tracker), newOpts: newOpts}
}

// Begin starts tracking name unless it is already tracked
func (g *Group) Begin(ctx context.Context, name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.trackers[name]; ok {
		return
	}
	t := New(g.newOpts(name))
	t.Start(ctx)
	g.trackers[name] = t
}

// End stops tracking name
func (g *Group) End(name string) {
	g.mu.Lock()
	t, ok := g.trackers[name]
	delete(g.trackers, name)
	g.mu.Unlock()
	if ok {
		t.Stop()
	}
}

// StopAll stops every tracker still running
func (g *Group) StopAll() {
	g.mu.Lock()
	trackers := g.trackers
	g.trackers = make(map[string]*Tracker)
	g.mu.Unlock()
	for _, t := range trackers {
		t.Stop()
	}
}
