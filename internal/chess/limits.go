package chess

import (
	"fmt"
	"time"

	"github.com/park285/chess-insight/internal/chess/uci"
)

const (
	DefaultTopLines       = 3
	DefaultSearchDepth    = 18
	DefaultSessionTimeout = 60 * time.Second
)

// EngineConfig carries everything needed to run analysis sessions. The
// binary path is resolved by the caller.
type EngineConfig struct {
	BinaryPath     string
	Depth          int
	MoveTimeMillis int
	TopLines       int
	Threads        int
	HashMB         int
	MaxSessions    int
	SessionTimeout time.Duration
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.Depth <= 0 && c.MoveTimeMillis <= 0 {
		c.Depth = DefaultSearchDepth
	}
	if c.TopLines <= 0 {
		c.TopLines = DefaultTopLines
	}
	if c.HashMB <= 0 {
		c.HashMB = 64
	}
	if c.Threads <= 0 {
		c.Threads = 1
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	return c
}

func (c EngineConfig) limits() uci.Limits {
	return uci.Limits{Depth: c.Depth, MoveTimeMillis: c.MoveTimeMillis}
}

func validateEngineConfig(c EngineConfig) error {
	if c.BinaryPath == "" {
		return fmt.Errorf("engine binary path required")
	}
	if c.TopLines > 10 {
		return fmt.Errorf("top lines %d out of range 1-10", c.TopLines)
	}
	if c.Depth > 60 {
		return fmt.Errorf("search depth %d out of range 1-60", c.Depth)
	}
	return nil
}
