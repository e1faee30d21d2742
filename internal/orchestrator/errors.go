package orchestrator

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, one per the error-kind taxonomy: configuration
// problems, transport failures, unparseable protocol replies, tool
// failures, budget exhaustion, and cancellation. Wrap a sentinel with
// fmt.Errorf("...: %w", ErrX) so callers can errors.Is/errors.As instead
// of string-matching.
var (
	ErrConfig    = errors.New("config error")
	ErrTransport = errors.New("transport error")
	ErrProtocol  = errors.New("protocol error")
	ErrTool      = errors.New("tool error")
	ErrBudget    = errors.New("budget error")
	ErrCancelled = errors.New("cancelled")
)

func configErrorf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrConfig)...)
}

func protocolErrorf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrProtocol)...)
}

func transportErrorf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrTransport)...)
}
