package uci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
)

var ErrLauncherClosed = errors.New("engine launcher closed")

type LauncherConfig struct {
	BinaryPath string
	Capacity   int
	Options    Options
	Limits     Limits
	// OnStart and OnStop observe process lifetimes, e.g. for a gauge.
	OnStart func()
	OnStop  func()
}

// Launcher starts a fresh engine process per caller and bounds how many
// run at once. Sessions are never reused.
type Launcher struct {
	binaryPath string
	opt        Options
	limits     Limits
	slots      chan struct{}
	onStart    func()
	onStop     func()

	mu     sync.Mutex
	live   map[*Session]struct{}
	closed bool
}

func NewLauncher(cfg LauncherConfig) (*Launcher, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("binary path required")
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity()
	}
	opt := cfg.Options
	if opt.HashMB <= 0 {
		opt.HashMB = 64
	}
	if opt.MultiPV <= 0 {
		opt.MultiPV = 1
	}
	if _, err := buildGoTokens(cfg.Limits); err != nil {
		return nil, err
	}
	return &Launcher{
		binaryPath: cfg.BinaryPath,
		opt:        opt,
		limits:     cfg.Limits,
		slots:      make(chan struct{}, capacity),
		onStart:    cfg.OnStart,
		onStop:     cfg.OnStop,
		live:       make(map[*Session]struct{}),
	}, nil
}

// Start blocks until a slot is free, then spawns and handshakes a new
// engine. multiPV overrides the configured line count when positive.
// Closing the session frees the slot.
func (l *Launcher) Start(ctx context.Context, multiPV int) (*Session, error) {
	if _, err := os.Stat(l.binaryPath); err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}

	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		<-l.slots
		return nil, ErrLauncherClosed
	}

	opt := l.opt
	if multiPV > 0 {
		opt.MultiPV = multiPV
	}
	session, err := NewSession(ctx, l.binaryPath, opt, l.limits)
	if err != nil {
		<-l.slots
		return nil, err
	}

	l.mu.Lock()
	l.live[session] = struct{}{}
	l.mu.Unlock()
	if l.onStart != nil {
		l.onStart()
	}

	session.onClose = func() {
		l.mu.Lock()
		delete(l.live, session)
		l.mu.Unlock()
		<-l.slots
		if l.onStop != nil {
			l.onStop()
		}
	}
	return session, nil
}

// InUse reports how many engine processes are alive.
func (l *Launcher) InUse() int { return len(l.slots) }

func (l *Launcher) Capacity() int { return cap(l.slots) }

// Close refuses new sessions and kills the ones still running.
func (l *Launcher) Close() error {
	l.mu.Lock()
	l.closed = true
	sessions := make([]*Session, 0, len(l.live))
	for s := range l.live {
		sessions = append(sessions, s)
	}
	l.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func defaultCapacity() int {
	cpu := runtime.NumCPU()
	if cpu < 2 {
		return 2
	}
	if cpu > 4 {
		return 4
	}
	return cpu
}
